package repository

import (
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
)

type recruiterRepository struct {
	db *gorm.DB
}

// NewRecruiterRepository creates a recruiter repository backed by GORM.
func NewRecruiterRepository(db *gorm.DB) RecruiterRepository {
	return &recruiterRepository{db: db}
}

func (r *recruiterRepository) Create(rec *models.Recruiter) error {
	return r.db.Create(rec).Error
}

func (r *recruiterRepository) GetByID(id uint) (*models.Recruiter, error) {
	var rec models.Recruiter
	if err := r.db.First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recruiterRepository) GetByUserID(userID uint) ([]models.Recruiter, error) {
	var recs []models.Recruiter
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&recs).Error
	return recs, err
}

func (r *recruiterRepository) Update(rec *models.Recruiter) error {
	return r.db.Save(rec).Error
}

func (r *recruiterRepository) Delete(id uint) error {
	return r.db.Delete(&models.Recruiter{}, id).Error
}

func (r *recruiterRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Recruiter{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
