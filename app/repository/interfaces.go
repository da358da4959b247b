package repository

import (
	"errors"
	"time"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

// Quota mutation errors. ErrQuotaExhausted is an expected, recoverable
// condition surfaced to callers as an upgrade prompt; ErrInvalidQuotaType is a
// programming error.
var (
	ErrQuotaExhausted   = errors.New("quota exhausted")
	ErrInvalidQuotaType = errors.New("invalid quota type")
	ErrNoPlanHistory    = errors.New("no plan history")
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByOAuth(provider, oauthID string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	SetPremium(userID uint, premium bool) error
	Count() (int64, error)
}

// PlanHistoryRepository is the append-only plan change log plus the
// transactional quota counters on the current record.
type PlanHistoryRepository interface {
	Append(rec *models.PlanHistory) error
	// Current resolves the single record with the greatest plan change date
	// for the user. Insertion order is never consulted.
	Current(userID uint) (*models.PlanHistory, error)
	ListByUser(userID uint) ([]models.PlanHistory, error)
	// ListExpired returns current records whose entitlement window lapsed and
	// whose plan is still a paid one.
	ListExpired(now time.Time) ([]models.PlanHistory, error)
	// DecrementQuota atomically takes one unit of the resource from the
	// user's current record. Fails with ErrQuotaExhausted at zero.
	DecrementQuota(userID uint, rt entitlements.ResourceType) error
	// IncrementQuota atomically restores one unit. Not bounded by the
	// original grant.
	IncrementQuota(userID uint, rt entitlements.ResourceType) error
}

// WebhookEventRepository is the idempotency fence for billing webhooks.
type WebhookEventRepository interface {
	// Claim atomically records the event unless an event with the same
	// provider event id exists. Returns true when this call claimed it.
	Claim(event *models.ProcessedWebhookEvent) (bool, *models.ProcessedWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// ProfileRepository defines CRUD for career profiles.
type ProfileRepository interface {
	Create(profile *models.Profile) error
	GetByID(id uint) (*models.Profile, error)
	GetByUserID(userID uint) ([]models.Profile, error)
	Update(profile *models.Profile) error
	Delete(id uint) error
	CountByUserID(userID uint) (int64, error)
}

// ResumeRepository defines CRUD for generated documents.
type ResumeRepository interface {
	Create(resume *models.Resume) error
	GetByID(id uint) (*models.Resume, error)
	GetByUserID(userID uint) ([]models.Resume, error)
	GetByProfileID(profileID uint) ([]models.Resume, error)
	Update(resume *models.Resume) error
	Delete(id uint) error
	CountByUserID(userID uint) (int64, error)
}

// OpportunityRepository defines CRUD for tracked job applications.
type OpportunityRepository interface {
	Create(op *models.Opportunity) error
	GetByID(id uint) (*models.Opportunity, error)
	GetByUserID(userID uint) ([]models.Opportunity, error)
	GetByUserIDAndStage(userID uint, stage string) ([]models.Opportunity, error)
	Update(op *models.Opportunity) error
	Delete(id uint) error
	CountByUserID(userID uint) (int64, error)
}

// RecruiterRepository defines CRUD for recruiter contacts.
type RecruiterRepository interface {
	Create(rec *models.Recruiter) error
	GetByID(id uint) (*models.Recruiter, error)
	GetByUserID(userID uint) ([]models.Recruiter, error)
	Update(rec *models.Recruiter) error
	Delete(id uint) error
	CountByUserID(userID uint) (int64, error)
}

// InteractionRepository records content generation calls.
type InteractionRepository interface {
	Create(in *models.Interaction) error
	GetByUserID(userID uint, offset, limit int) ([]models.Interaction, error)
	CountByUserID(userID uint) (int64, error)
}
