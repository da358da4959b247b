package repository

import (
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
)

type opportunityRepository struct {
	db *gorm.DB
}

// NewOpportunityRepository creates an opportunity repository backed by GORM.
func NewOpportunityRepository(db *gorm.DB) OpportunityRepository {
	return &opportunityRepository{db: db}
}

func (r *opportunityRepository) Create(op *models.Opportunity) error {
	return r.db.Create(op).Error
}

func (r *opportunityRepository) GetByID(id uint) (*models.Opportunity, error) {
	var op models.Opportunity
	if err := r.db.First(&op, id).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *opportunityRepository) GetByUserID(userID uint) ([]models.Opportunity, error) {
	var ops []models.Opportunity
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&ops).Error
	return ops, err
}

func (r *opportunityRepository) GetByUserIDAndStage(userID uint, stage string) ([]models.Opportunity, error) {
	var ops []models.Opportunity
	err := r.db.Where("user_id = ? AND stage = ?", userID, stage).Order("updated_at DESC").Find(&ops).Error
	return ops, err
}

func (r *opportunityRepository) Update(op *models.Opportunity) error {
	return r.db.Save(op).Error
}

func (r *opportunityRepository) Delete(id uint) error {
	return r.db.Delete(&models.Opportunity{}, id).Error
}

func (r *opportunityRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Opportunity{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
