package quota

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

// Re-exported so callers checking ledger errors do not need to import the
// repository package.
var (
	ErrQuotaExhausted   = repository.ErrQuotaExhausted
	ErrInvalidQuotaType = repository.ErrInvalidQuotaType
)

// Ledger meters per-resource usage against the quota snapshot on the user's
// current plan history record. All mutation goes through the repository's
// transactional counters; the ledger never does a raw read-modify-write.
type Ledger struct {
	planHistory repository.PlanHistoryRepository
}

// NewLedger creates a quota ledger over a plan history repository.
func NewLedger(planHistory repository.PlanHistoryRepository) *Ledger {
	return &Ledger{planHistory: planHistory}
}

// Consume takes one unit of the resource from the user's current quota.
// Returns ErrQuotaExhausted when nothing remains; callers surface that as an
// upgrade prompt, not a failure.
func (l *Ledger) Consume(userID uint, rt entitlements.ResourceType) error {
	if !entitlements.ValidResourceType(rt) {
		return ErrInvalidQuotaType
	}
	err := l.planHistory.DecrementQuota(userID, rt)
	if errors.Is(err, repository.ErrNoPlanHistory) {
		// First metered action of a user who never touched billing: bootstrap
		// the implicit free plan, then consume from it.
		if err := l.bootstrapFreePlan(userID); err != nil {
			return err
		}
		return l.planHistory.DecrementQuota(userID, rt)
	}
	return err
}

// Restore gives one unit back after a consumed resource is deleted. Restoring
// is always allowed and not capped at the original grant.
func (l *Ledger) Restore(userID uint, rt entitlements.ResourceType) error {
	if !entitlements.ValidResourceType(rt) {
		return ErrInvalidQuotaType
	}
	err := l.planHistory.IncrementQuota(userID, rt)
	if errors.Is(err, repository.ErrNoPlanHistory) {
		// Nothing was ever consumed; a fresh free grant already contains the unit.
		return l.bootstrapFreePlan(userID)
	}
	return err
}

// Remaining returns the user's full remaining quota snapshot.
func (l *Ledger) Remaining(userID uint) (entitlements.QuotaSet, error) {
	current, err := l.current(userID)
	if err != nil {
		return entitlements.QuotaSet{}, err
	}
	if current == nil {
		return entitlements.Grants(entitlements.PlanFree), nil
	}
	return current.Quotas(), nil
}

// RemainingOne returns the remaining quota for a single resource type.
func (l *Ledger) RemainingOne(userID uint, rt entitlements.ResourceType) (int, error) {
	if !entitlements.ValidResourceType(rt) {
		return 0, ErrInvalidQuotaType
	}
	all, err := l.Remaining(userID)
	if err != nil {
		return 0, err
	}
	n, _ := all.Get(rt)
	return n, nil
}

func (l *Ledger) current(userID uint) (*models.PlanHistory, error) {
	rec, err := l.planHistory.Current(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (l *Ledger) bootstrapFreePlan(userID uint) error {
	rec := models.NewPlanHistory(
		uuid.NewString(),
		userID,
		entitlements.PlanFree,
		models.ChangeTypeNew,
		decimal.Zero,
		time.Now(),
	)
	err := l.planHistory.Append(rec)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent request bootstrapped first; that record serves.
		return nil
	}
	return err
}
