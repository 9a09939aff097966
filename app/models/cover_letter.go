package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CoverLetter is one generation action. The monthly usage counter is
// computed on demand from created_at; nothing here is denormalized.
type CoverLetter struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UUID        string         `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	UserID      uint           `gorm:"not null;index:idx_cover_letters_user_created,priority:1" json:"user_id"`
	JobTitle    string         `gorm:"type:varchar(200)" json:"job_title"`
	CompanyName string         `gorm:"type:varchar(200)" json:"company_name"`
	JobPosting  string         `gorm:"type:longtext" json:"job_posting"`
	Resume      string         `gorm:"type:longtext" json:"-"`
	Content     string         `gorm:"type:longtext" json:"content"`
	Model       string         `gorm:"type:varchar(64);default:''" json:"model"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index:idx_cover_letters_user_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns the public UUID if the caller did not set one.
func (cl *CoverLetter) BeforeCreate(tx *gorm.DB) error {
	if cl.UUID == "" {
		cl.UUID = uuid.New().String()
	}
	return nil
}
