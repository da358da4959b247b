package repository

import (
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
)

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a profile repository backed by GORM.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(profile *models.Profile) error {
	return r.db.Create(profile).Error
}

func (r *profileRepository) GetByID(id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByUserID(userID uint) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) Update(profile *models.Profile) error {
	return r.db.Save(profile).Error
}

func (r *profileRepository) Delete(id uint) error {
	return r.db.Delete(&models.Profile{}, id).Error
}

func (r *profileRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Profile{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
