package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

type planHistoryRepository struct {
	db *gorm.DB
}

// NewPlanHistoryRepository creates a plan history repository backed by GORM.
func NewPlanHistoryRepository(db *gorm.DB) PlanHistoryRepository {
	return &planHistoryRepository{db: db}
}

func (r *planHistoryRepository) Append(rec *models.PlanHistory) error {
	return r.db.Create(rec).Error
}

func (r *planHistoryRepository) Current(userID uint) (*models.PlanHistory, error) {
	var rec models.PlanHistory
	err := r.db.
		Where("user_id = ?", userID).
		Order("plan_change_date DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *planHistoryRepository) ListByUser(userID uint) ([]models.PlanHistory, error) {
	var recs []models.PlanHistory
	err := r.db.
		Where("user_id = ?", userID).
		Order("plan_change_date DESC").
		Find(&recs).Error
	return recs, err
}

func (r *planHistoryRepository) ListExpired(now time.Time) ([]models.PlanHistory, error) {
	var recs []models.PlanHistory
	// Only the current (latest by plan change date) record per user counts.
	err := r.db.
		Where("expiration_date IS NOT NULL AND expiration_date <= ?", now).
		Where("plan IN ?", []string{string(entitlements.PlanBasic), string(entitlements.PlanPremium)}).
		Where("plan_change_date = (SELECT MAX(p2.plan_change_date) FROM plan_histories p2 WHERE p2.user_id = plan_histories.user_id)").
		Find(&recs).Error
	return recs, err
}

func (r *planHistoryRepository) DecrementQuota(userID uint, rt entitlements.ResourceType) error {
	return mutateQuota(r.db, userID, rt, -1)
}

func (r *planHistoryRepository) IncrementQuota(userID uint, rt entitlements.ResourceType) error {
	return mutateQuota(r.db, userID, rt, +1)
}

// mutateQuota applies a single-unit quota change to the user's current plan
// history record inside one transaction. The row is locked for the duration
// so two concurrent decrements cannot both observe the last remaining unit.
func mutateQuota(db *gorm.DB, userID uint, rt entitlements.ResourceType, delta int) error {
	column, ok := models.QuotaColumn(rt)
	if !ok {
		return ErrInvalidQuotaType
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var rec models.PlanHistory
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Order("plan_change_date DESC").
			First(&rec).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoPlanHistory
			}
			return err
		}

		current, _ := rec.Quota(rt)
		if delta < 0 && current <= 0 {
			return ErrQuotaExhausted
		}

		return tx.Model(&models.PlanHistory{}).
			Where("id = ?", rec.ID).
			UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
	})
}
