package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
)

// Repository provides the DB operations used by the reconciler. Transaction
// yields a repository bound to one database transaction so the webhook claim
// and the resulting plan history append commit or roll back together.
type Repository interface {
	ClaimWebhookEvent(event *models.ProcessedWebhookEvent) (bool, *models.ProcessedWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	CurrentPlanHistory(userID uint) (*models.PlanHistory, error)
	AppendPlanHistory(rec *models.PlanHistory) error
	ListExpiredPlanHistories(now time.Time) ([]models.PlanHistory, error)
	SetUserPremium(userID uint, premium bool) error
	GetUser(userID uint) (*models.User, error)
	SaveUser(user *models.User) error
	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db          *gorm.DB
	users       repository.UserRepository
	planHistory repository.PlanHistoryRepository
	webhooks    repository.WebhookEventRepository
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{
		db:          db,
		users:       repository.NewUserRepository(db),
		planHistory: repository.NewPlanHistoryRepository(db),
		webhooks:    repository.NewWebhookEventRepository(db),
	}
}

func (r *gormRepository) ClaimWebhookEvent(event *models.ProcessedWebhookEvent) (bool, *models.ProcessedWebhookEvent, error) {
	return r.webhooks.Claim(event)
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	return r.webhooks.MarkProcessed(id, processingError)
}

func (r *gormRepository) CurrentPlanHistory(userID uint) (*models.PlanHistory, error) {
	rec, err := r.planHistory.Current(userID)
	if err != nil {
		// Absence of history is a valid state (new user), not an error.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *gormRepository) AppendPlanHistory(rec *models.PlanHistory) error {
	return r.planHistory.Append(rec)
}

func (r *gormRepository) ListExpiredPlanHistories(now time.Time) ([]models.PlanHistory, error) {
	return r.planHistory.ListExpired(now)
}

func (r *gormRepository) SetUserPremium(userID uint, premium bool) error {
	return r.users.SetPremium(userID, premium)
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	return r.users.GetByID(userID)
}

func (r *gormRepository) SaveUser(user *models.User) error {
	return r.users.Update(user)
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
