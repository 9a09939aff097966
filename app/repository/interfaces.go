package repository

import (
	"time"

	"github.com/coverpilothq/coverpilot/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// CoverLetterRepository defines the interface for generation-action records
type CoverLetterRepository interface {
	Create(letter *models.CoverLetter) error
	GetByUUID(uuid string) (*models.CoverLetter, error)
	GetByUserID(userID uint, offset, limit int) ([]models.CoverLetter, error)
	CountByUserID(userID uint) (int64, error)
	CountByUserInWindow(userID uint, start, end time.Time) (int64, error)
	Delete(id uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	CoverLetter CoverLetterRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		CoverLetter: NewCoverLetterRepository(db),
	}
}
