package repository

import (
	"time"

	"github.com/coverpilothq/coverpilot/app/models"
	"gorm.io/gorm"
)

// coverLetterRepository implements the CoverLetterRepository interface
type coverLetterRepository struct {
	db *gorm.DB
}

// NewCoverLetterRepository creates a new cover letter repository instance
func NewCoverLetterRepository(db *gorm.DB) CoverLetterRepository {
	return &coverLetterRepository{db: db}
}

// Create persists a new cover letter record
func (r *coverLetterRepository) Create(letter *models.CoverLetter) error {
	return r.db.Create(letter).Error
}

// GetByUUID retrieves a cover letter by its public UUID
func (r *coverLetterRepository) GetByUUID(uuid string) (*models.CoverLetter, error) {
	var letter models.CoverLetter
	err := r.db.Where("uuid = ?", uuid).First(&letter).Error
	if err != nil {
		return nil, err
	}
	return &letter, nil
}

// GetByUserID retrieves a paginated list of a user's cover letters
func (r *coverLetterRepository) GetByUserID(userID uint, offset, limit int) ([]models.CoverLetter, error) {
	var letters []models.CoverLetter
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&letters).Error
	return letters, err
}

// CountByUserID returns the total number of letters a user has generated
func (r *coverLetterRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CoverLetter{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountByUserInWindow counts a user's letters created inside a time window.
// This is the query the monthly quota check runs on every generation request.
func (r *coverLetterRepository) CountByUserInWindow(userID uint, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.CoverLetter{}).
		Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, start, end).
		Count(&count).Error
	return count, err
}

// Delete soft deletes a cover letter by ID
func (r *coverLetterRepository) Delete(id uint) error {
	return r.db.Delete(&models.CoverLetter{}, id).Error
}
