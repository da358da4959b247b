package repository

import (
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
)

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates an interaction repository backed by GORM.
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) Create(in *models.Interaction) error {
	return r.db.Create(in).Error
}

func (r *interactionRepository) GetByUserID(userID uint, offset, limit int) ([]models.Interaction, error) {
	var interactions []models.Interaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&interactions).Error
	return interactions, err
}

func (r *interactionRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Interaction{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
