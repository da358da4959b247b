package quota

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

// fakePlanHistoryRepository serializes quota mutation with a mutex, mirroring
// the row lock the real implementation takes inside its transaction.
type fakePlanHistoryRepository struct {
	mu      sync.Mutex
	records []models.PlanHistory
}

func (f *fakePlanHistoryRepository) Append(rec *models.PlanHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == rec.ID {
			return gorm.ErrDuplicatedKey
		}
	}
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakePlanHistoryRepository) Current(userID uint) (*models.PlanHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.currentIndexLocked(userID)
	if idx < 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := f.records[idx]
	return &cp, nil
}

func (f *fakePlanHistoryRepository) currentIndexLocked(userID uint) int {
	idx := -1
	for i := range f.records {
		if f.records[i].UserID != userID {
			continue
		}
		if idx < 0 || !f.records[i].PlanChangeDate.Before(f.records[idx].PlanChangeDate) {
			idx = i
		}
	}
	return idx
}

func (f *fakePlanHistoryRepository) ListByUser(userID uint) ([]models.PlanHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PlanHistory
	for i := range f.records {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func (f *fakePlanHistoryRepository) ListExpired(now time.Time) ([]models.PlanHistory, error) {
	return nil, nil
}

func (f *fakePlanHistoryRepository) DecrementQuota(userID uint, rt entitlements.ResourceType) error {
	return f.mutate(userID, rt, -1)
}

func (f *fakePlanHistoryRepository) IncrementQuota(userID uint, rt entitlements.ResourceType) error {
	return f.mutate(userID, rt, 1)
}

func (f *fakePlanHistoryRepository) mutate(userID uint, rt entitlements.ResourceType, delta int) error {
	if !entitlements.ValidResourceType(rt) {
		return repository.ErrInvalidQuotaType
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.currentIndexLocked(userID)
	if idx < 0 {
		return repository.ErrNoPlanHistory
	}
	rec := &f.records[idx]
	current, _ := rec.Quota(rt)
	if delta < 0 && current <= 0 {
		return repository.ErrQuotaExhausted
	}
	switch rt {
	case entitlements.ResourceInteractions:
		rec.QuotaInteractions += delta
	case entitlements.ResourceProfiles:
		rec.QuotaProfiles += delta
	case entitlements.ResourceResumes:
		rec.QuotaResumes += delta
	case entitlements.ResourceOpportunities:
		rec.QuotaOpportunities += delta
	case entitlements.ResourceContacts:
		rec.QuotaContacts += delta
	}
	return nil
}

func seedPlan(t *testing.T, repo *fakePlanHistoryRepository, userID uint, plan entitlements.Plan) {
	t.Helper()
	rec := models.NewPlanHistory("rec_"+string(plan), userID, plan, models.ChangeTypeNew, decimal.Zero, time.Now())
	if err := repo.Append(rec); err != nil {
		t.Fatalf("seeding plan history: %v", err)
	}
}

func TestConsumeUntilExhausted(t *testing.T) {
	repo := &fakePlanHistoryRepository{}
	seedPlan(t, repo, 1, entitlements.PlanFree)
	ledger := NewLedger(repo)

	grant := entitlements.Grants(entitlements.PlanFree).Resumes
	for i := 0; i < grant; i++ {
		if err := ledger.Consume(1, entitlements.ResourceResumes); err != nil {
			t.Fatalf("consume %d/%d: %v", i+1, grant, err)
		}
	}

	remaining, err := ledger.RemainingOne(1, entitlements.ResourceResumes)
	if err != nil {
		t.Fatalf("RemainingOne: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining after full consumption = %d, want 0", remaining)
	}

	if err := ledger.Consume(1, entitlements.ResourceResumes); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("consume at zero: %v, want ErrQuotaExhausted", err)
	}

	// Restoring one unit makes one more consumption possible.
	if err := ledger.Restore(1, entitlements.ResourceResumes); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if remaining, _ := ledger.RemainingOne(1, entitlements.ResourceResumes); remaining != 1 {
		t.Fatalf("remaining after restore = %d, want 1", remaining)
	}
	if err := ledger.Consume(1, entitlements.ResourceResumes); err != nil {
		t.Fatalf("consume after restore: %v", err)
	}
}

func TestConsumeInvalidResourceType(t *testing.T) {
	repo := &fakePlanHistoryRepository{}
	seedPlan(t, repo, 1, entitlements.PlanBasic)
	ledger := NewLedger(repo)

	if err := ledger.Consume(1, entitlements.ResourceType("storage")); !errors.Is(err, ErrInvalidQuotaType) {
		t.Fatalf("consume unknown type: %v, want ErrInvalidQuotaType", err)
	}
	if err := ledger.Restore(1, entitlements.ResourceType("")); !errors.Is(err, ErrInvalidQuotaType) {
		t.Fatalf("restore unknown type: %v, want ErrInvalidQuotaType", err)
	}
}

func TestConsumeBootstrapsFreePlan(t *testing.T) {
	repo := &fakePlanHistoryRepository{}
	ledger := NewLedger(repo)

	if err := ledger.Consume(2, entitlements.ResourceProfiles); err != nil {
		t.Fatalf("consume without history: %v", err)
	}

	current, err := repo.Current(2)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.Plan != string(entitlements.PlanFree) || current.ChangeType != models.ChangeTypeNew {
		t.Fatalf("bootstrap record: plan=%s changeType=%s, want free new", current.Plan, current.ChangeType)
	}

	want := entitlements.Grants(entitlements.PlanFree).Profiles - 1
	if got, _ := ledger.RemainingOne(2, entitlements.ResourceProfiles); got != want {
		t.Fatalf("remaining profiles = %d, want %d", got, want)
	}
}

func TestRestoreIsUnbounded(t *testing.T) {
	repo := &fakePlanHistoryRepository{}
	seedPlan(t, repo, 3, entitlements.PlanFree)
	ledger := NewLedger(repo)

	grant := entitlements.Grants(entitlements.PlanFree).Contacts
	for i := 0; i < 3; i++ {
		if err := ledger.Restore(3, entitlements.ResourceContacts); err != nil {
			t.Fatalf("restore %d: %v", i+1, err)
		}
	}
	if got, _ := ledger.RemainingOne(3, entitlements.ResourceContacts); got != grant+3 {
		t.Fatalf("remaining contacts = %d, want %d", got, grant+3)
	}
}

func TestRemainingWithoutHistoryIsFreeGrant(t *testing.T) {
	ledger := NewLedger(&fakePlanHistoryRepository{})

	remaining, err := ledger.Remaining(4)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != entitlements.Grants(entitlements.PlanFree) {
		t.Fatalf("remaining = %+v, want free grants", remaining)
	}
}

func TestConcurrentConsumptionNeverOversubscribes(t *testing.T) {
	repo := &fakePlanHistoryRepository{}
	seedPlan(t, repo, 5, entitlements.PlanFree)
	ledger := NewLedger(repo)

	grant := entitlements.Grants(entitlements.PlanFree).Opportunities
	attempts := grant * 3

	var wg sync.WaitGroup
	var succeeded, exhausted int
	var counts sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Consume(5, entitlements.ResourceOpportunities)
			counts.Lock()
			defer counts.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrQuotaExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != grant {
		t.Fatalf("succeeded = %d, want exactly the grant %d", succeeded, grant)
	}
	if exhausted != attempts-grant {
		t.Fatalf("exhausted = %d, want %d", exhausted, attempts-grant)
	}
	if got, _ := ledger.RemainingOne(5, entitlements.ResourceOpportunities); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}
