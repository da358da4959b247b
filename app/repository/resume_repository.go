package repository

import (
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
)

type resumeRepository struct {
	db *gorm.DB
}

// NewResumeRepository creates a resume repository backed by GORM.
func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

func (r *resumeRepository) Create(resume *models.Resume) error {
	return r.db.Create(resume).Error
}

func (r *resumeRepository) GetByID(id uint) (*models.Resume, error) {
	var resume models.Resume
	if err := r.db.First(&resume, id).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

func (r *resumeRepository) GetByUserID(userID uint) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&resumes).Error
	return resumes, err
}

func (r *resumeRepository) GetByProfileID(profileID uint) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.Where("profile_id = ?", profileID).Order("updated_at DESC").Find(&resumes).Error
	return resumes, err
}

func (r *resumeRepository) Update(resume *models.Resume) error {
	return r.db.Save(resume).Error
}

func (r *resumeRepository) Delete(id uint) error {
	return r.db.Delete(&models.Resume{}, id).Error
}

func (r *resumeRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Resume{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
