package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

// fakeRepository is an in-memory Repository with snapshot-based transaction
// rollback, mirroring how the real implementation ties the webhook claim and
// the plan history append to one commit.
type fakeRepository struct {
	mu          sync.Mutex
	events      map[string]*models.ProcessedWebhookEvent
	history     []models.PlanHistory
	premium     map[uint]bool
	users       map[uint]*models.User
	nextEventID uint

	appendErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		events:  map[string]*models.ProcessedWebhookEvent{},
		premium: map[uint]bool{},
		users:   map[uint]*models.User{},
	}
}

func (f *fakeRepository) ClaimWebhookEvent(event *models.ProcessedWebhookEvent) (bool, *models.ProcessedWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.events[event.EventID]; ok {
		return false, stored, nil
	}
	f.nextEventID++
	stored := *event
	stored.ID = f.nextEventID
	f.events[event.EventID] = &stored
	return true, &stored, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return fmt.Errorf("webhook event %d not found", id)
}

func (f *fakeRepository) CurrentPlanHistory(userID uint) (*models.PlanHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentLocked(userID), nil
}

func (f *fakeRepository) currentLocked(userID uint) *models.PlanHistory {
	var current *models.PlanHistory
	for i := range f.history {
		rec := &f.history[i]
		if rec.UserID != userID {
			continue
		}
		if current == nil || !rec.PlanChangeDate.Before(current.PlanChangeDate) {
			current = rec
		}
	}
	if current == nil {
		return nil
	}
	cp := *current
	return &cp
}

func (f *fakeRepository) AppendPlanHistory(rec *models.PlanHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	for i := range f.history {
		if f.history[i].ID == rec.ID {
			return fmt.Errorf("duplicate plan history id %s", rec.ID)
		}
	}
	f.history = append(f.history, *rec)
	return nil
}

func (f *fakeRepository) ListExpiredPlanHistories(now time.Time) ([]models.PlanHistory, error) {
	f.mu.Lock()
	seen := map[uint]bool{}
	for i := range f.history {
		seen[f.history[i].UserID] = true
	}
	f.mu.Unlock()

	var out []models.PlanHistory
	for userID := range seen {
		current, _ := f.CurrentPlanHistory(userID)
		if current != nil && current.IsExpired(now) && entitlements.IsPaid(current.PlanValue()) {
			out = append(out, *current)
		}
	}
	return out, nil
}

func (f *fakeRepository) SetUserPremium(userID uint, premium bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.premium[userID] = premium
	return nil
}

func (f *fakeRepository) GetUser(userID uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user %d not found", userID)
}

func (f *fakeRepository) SaveUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeRepository) Transaction(fn func(Repository) error) error {
	f.mu.Lock()
	snapEvents := make(map[string]*models.ProcessedWebhookEvent, len(f.events))
	for k, v := range f.events {
		cp := *v
		snapEvents[k] = &cp
	}
	snapHistory := append([]models.PlanHistory(nil), f.history...)
	snapPremium := make(map[uint]bool, len(f.premium))
	for k, v := range f.premium {
		snapPremium[k] = v
	}
	snapNext := f.nextEventID
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.events = snapEvents
		f.history = snapHistory
		f.premium = snapPremium
		f.nextEventID = snapNext
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepository) historyFor(userID uint) []models.PlanHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PlanHistory
	for i := range f.history {
		if f.history[i].UserID == userID {
			out = append(out, f.history[i])
		}
	}
	return out
}

type fakeProvider struct {
	subs          map[string]*Subscription
	metadataCalls map[string]map[string]string
	canceled      []string
	checkout      *CheckoutSession
	err           error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subs:          map[string]*Subscription{},
		metadataCalls: map[string]map[string]string{},
	}
}

func (p *fakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if p.err != nil {
		return nil, p.err
	}
	sub, ok := p.subs[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("subscription %s not found", subscriptionID)
	}
	cp := *sub
	return &cp, nil
}

func (p *fakeProvider) UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.metadataCalls[subscriptionID] = metadata
	if sub, ok := p.subs[subscriptionID]; ok {
		if sub.Metadata == nil {
			sub.Metadata = map[string]string{}
		}
		for k, v := range metadata {
			sub.Metadata[k] = v
		}
	}
	return nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if p.err != nil {
		return p.err
	}
	p.canceled = append(p.canceled, subscriptionID)
	return nil
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.checkout == nil {
		return nil, errors.New("no checkout session configured")
	}
	cp := *p.checkout
	return &cp, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository, *fakeProvider) {
	t.Helper()
	t.Setenv("STRIPE_PRICE_BASIC", "price_basic")
	t.Setenv("STRIPE_PRICE_PREMIUM", "price_premium")

	repo := newFakeRepository()
	provider := newFakeProvider()
	svc := NewService(repo, provider)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc, repo, provider
}

func subscriptionEvent(t *testing.T, eventID, eventType, subID, priceID, status string, userID uint, unitAmount int64) *Event {
	t.Helper()
	payload := fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"data": {"object": {
			"id": %q,
			"status": %q,
			"metadata": {"userId": "%d"},
			"items": {"data": [{"price": {"id": %q, "unit_amount": %d}}]}
		}}
	}`, eventID, eventType, subID, status, userID, priceID, unitAmount)
	ev, err := ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("building event: %v", err)
	}
	return ev
}

func TestProcessEvent_CheckoutCompleted(t *testing.T) {
	svc, repo, provider := newTestService(t)
	provider.subs["sub_abc"] = &Subscription{
		ID:     "sub_abc",
		Status: SubscriptionStatusActive,
		Items: struct {
			Data []SubscriptionItem `json:"data"`
		}{Data: []SubscriptionItem{{Price: Price{ID: "price_basic", UnitAmount: 900}}}},
	}

	payload := []byte(`{
		"id": "evt_checkout_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"mode": "subscription",
			"subscription": "sub_abc",
			"amount_total": 900,
			"metadata": {"userId": "7"}
		}}
	}`)
	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	skipped, err := svc.ProcessEvent(context.Background(), ev, payload)
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if skipped {
		t.Fatalf("first delivery must not be skipped")
	}

	history := repo.historyFor(7)
	if len(history) != 1 {
		t.Fatalf("expected 1 plan history record, got %d", len(history))
	}
	rec := history[0]
	if rec.ID != "sub_abc" {
		t.Fatalf("first record id = %q, want subscription id verbatim", rec.ID)
	}
	if rec.Plan != string(entitlements.PlanBasic) || rec.ChangeType != models.ChangeTypeNew {
		t.Fatalf("unexpected record: plan=%s changeType=%s", rec.Plan, rec.ChangeType)
	}
	if rec.AmountPaid.String() != "9" {
		t.Fatalf("amount paid = %s, want 9", rec.AmountPaid)
	}
	if rec.QuotaResumes != entitlements.Grants(entitlements.PlanBasic).Resumes {
		t.Fatalf("quota snapshot not taken from basic grants")
	}
	if !repo.premium[7] {
		t.Fatalf("user should be premium after paid checkout")
	}
	if _, ok := provider.metadataCalls["sub_abc"]; !ok {
		t.Fatalf("expected user metadata to be attached to the subscription")
	}
}

func TestProcessEvent_DuplicateDeliverySkipped(t *testing.T) {
	svc, repo, _ := newTestService(t)

	ev := subscriptionEvent(t, "evt_dup", EventSubscriptionUpdated, "sub_dup", "price_basic", SubscriptionStatusActive, 3, 900)
	payload := []byte(`{}`)

	skipped, err := svc.ProcessEvent(context.Background(), ev, payload)
	if err != nil || skipped {
		t.Fatalf("first delivery: skipped=%v err=%v", skipped, err)
	}
	skipped, err = svc.ProcessEvent(context.Background(), ev, payload)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !skipped {
		t.Fatalf("second delivery with same event id must be skipped")
	}
	if got := len(repo.historyFor(3)); got != 1 {
		t.Fatalf("duplicate delivery appended history: got %d records, want 1", got)
	}
}

func TestProcessEvent_FailureReleasesClaim(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.appendErr = errors.New("connection lost")

	ev := subscriptionEvent(t, "evt_retry", EventSubscriptionUpdated, "sub_r", "price_basic", SubscriptionStatusActive, 4, 900)

	if _, err := svc.ProcessEvent(context.Background(), ev, []byte(`{}`)); err == nil {
		t.Fatalf("expected processing failure")
	}

	// The provider retry must find the claim rolled back and reprocess.
	repo.appendErr = nil
	skipped, err := svc.ProcessEvent(context.Background(), ev, []byte(`{}`))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if skipped {
		t.Fatalf("retry after rollback must not be skipped")
	}
	if got := len(repo.historyFor(4)); got != 1 {
		t.Fatalf("retry should append exactly one record, got %d", got)
	}
}

func TestProcessEvent_UpgradeDowngradeRenewal(t *testing.T) {
	svc, repo, _ := newTestService(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		return base.Add(time.Duration(step) * time.Hour)
	}

	deliver := func(id, priceID string) *models.PlanHistory {
		step++
		ev := subscriptionEvent(t, id, EventSubscriptionUpdated, "sub_x", priceID, SubscriptionStatusActive, 9, 900)
		if _, err := svc.ProcessEvent(context.Background(), ev, []byte(`{}`)); err != nil {
			t.Fatalf("ProcessEvent(%s): %v", id, err)
		}
		current, _ := repo.CurrentPlanHistory(9)
		return current
	}

	if rec := deliver("evt_1", "price_basic"); rec.ChangeType != models.ChangeTypeNew {
		t.Fatalf("first subscription event = %s, want new", rec.ChangeType)
	}
	if rec := deliver("evt_2", "price_premium"); rec.ChangeType != models.ChangeTypeUpgrade {
		t.Fatalf("basic->premium = %s, want upgrade", rec.ChangeType)
	}
	if rec := deliver("evt_3", "price_basic"); rec.ChangeType != models.ChangeTypeDowngrade {
		t.Fatalf("premium->basic = %s, want downgrade", rec.ChangeType)
	}
	if rec := deliver("evt_4", "price_basic"); rec.ChangeType != models.ChangeTypeRenewal {
		t.Fatalf("basic->basic = %s, want renewal", rec.ChangeType)
	}

	if got := len(repo.historyFor(9)); got != 4 {
		t.Fatalf("expected 4 records, got %d", got)
	}
}

func TestProcessEvent_SubscriptionDeleted(t *testing.T) {
	svc, repo, _ := newTestService(t)

	setup := subscriptionEvent(t, "evt_a", EventSubscriptionUpdated, "sub_del", "price_premium", SubscriptionStatusActive, 5, 2900)
	if _, err := svc.ProcessEvent(context.Background(), setup, []byte(`{}`)); err != nil {
		t.Fatalf("setup event: %v", err)
	}

	deleted := subscriptionEvent(t, "evt_b", EventSubscriptionDeleted, "sub_del", "price_premium", SubscriptionStatusCanceled, 5, 2900)
	if _, err := svc.ProcessEvent(context.Background(), deleted, []byte(`{}`)); err != nil {
		t.Fatalf("deleted event: %v", err)
	}

	history := repo.historyFor(5)
	// setup record, the deletion's classification record, and the terminal free record
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}

	current, _ := repo.CurrentPlanHistory(5)
	if current.Plan != string(entitlements.PlanFree) || current.ChangeType != models.ChangeTypeDowngrade {
		t.Fatalf("current after deletion: plan=%s changeType=%s, want free downgrade", current.Plan, current.ChangeType)
	}
	if current.ExpirationDate != nil {
		t.Fatalf("terminal free record must not carry an expiration date")
	}
	if !strings.HasPrefix(current.ID, "sub_del:") {
		t.Fatalf("terminal record id = %q, want sub_del suffix scheme", current.ID)
	}
	if repo.premium[5] {
		t.Fatalf("user must not stay premium after deletion")
	}
}

func TestProcessEvent_InvoiceFailed(t *testing.T) {
	svc, repo, provider := newTestService(t)

	setup := subscriptionEvent(t, "evt_s", EventSubscriptionUpdated, "sub_inv", "price_basic", SubscriptionStatusActive, 6, 900)
	if _, err := svc.ProcessEvent(context.Background(), setup, []byte(`{}`)); err != nil {
		t.Fatalf("setup event: %v", err)
	}

	provider.subs["sub_inv"] = &Subscription{
		ID:       "sub_inv",
		Status:   SubscriptionStatusPastDue,
		Metadata: map[string]string{"userId": "6"},
	}

	payload := []byte(`{
		"id": "evt_inv_1",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_1", "subscription": "sub_inv"}}
	}`)
	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if _, err := svc.ProcessEvent(context.Background(), ev, payload); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	current, _ := repo.CurrentPlanHistory(6)
	if current.Plan != string(entitlements.PlanFree) || current.ChangeType != models.ChangeTypeDowngrade {
		t.Fatalf("delinquent invoice should downgrade to free, got plan=%s changeType=%s", current.Plan, current.ChangeType)
	}
	if repo.premium[6] {
		t.Fatalf("delinquent user must not stay premium")
	}
}

func TestProcessEvent_InvoiceFailedActiveSubscriptionIgnored(t *testing.T) {
	svc, repo, provider := newTestService(t)

	provider.subs["sub_ok"] = &Subscription{
		ID:       "sub_ok",
		Status:   SubscriptionStatusActive,
		Metadata: map[string]string{"userId": "8"},
	}

	payload := []byte(`{
		"id": "evt_inv_2",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_2", "subscription": "sub_ok"}}
	}`)
	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if _, err := svc.ProcessEvent(context.Background(), ev, payload); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if got := len(repo.historyFor(8)); got != 0 {
		t.Fatalf("active subscription must not be downgraded, got %d records", got)
	}
}

func TestProcessEvent_MissingMetadataFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	payload := []byte(`{
		"id": "evt_nometa",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_nm", "status": "active"}}
	}`)
	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	if _, err := svc.ProcessEvent(context.Background(), ev, payload); !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("expected ErrMissingMetadata, got %v", err)
	}
}

func TestExpireLapsedPlans(t *testing.T) {
	svc, repo, _ := newTestService(t)

	ev := subscriptionEvent(t, "evt_exp", EventSubscriptionUpdated, "sub_exp", "price_basic", SubscriptionStatusActive, 11, 900)
	if _, err := svc.ProcessEvent(context.Background(), ev, []byte(`{}`)); err != nil {
		t.Fatalf("setup event: %v", err)
	}

	// Jump past the entitlement window.
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, models.PlanHistoryValidityDays+1)
	}

	downgraded, err := svc.ExpireLapsedPlans(context.Background())
	if err != nil {
		t.Fatalf("ExpireLapsedPlans: %v", err)
	}
	if downgraded != 1 {
		t.Fatalf("downgraded = %d, want 1", downgraded)
	}

	current, _ := repo.CurrentPlanHistory(11)
	if current.Plan != string(entitlements.PlanFree) {
		t.Fatalf("expired user should be on free, got %s", current.Plan)
	}
	if repo.premium[11] {
		t.Fatalf("expired user must not stay premium")
	}

	// A second sweep finds nothing: the current record is now the free one.
	downgraded, err = svc.ExpireLapsedPlans(context.Background())
	if err != nil || downgraded != 0 {
		t.Fatalf("second sweep: downgraded=%d err=%v, want 0, nil", downgraded, err)
	}
}

func TestCancelSubscription(t *testing.T) {
	svc, repo, provider := newTestService(t)

	if err := svc.CancelSubscription(context.Background(), 12); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("cancel without history: %v, want ErrNoActiveSubscription", err)
	}

	ev := subscriptionEvent(t, "evt_c", EventSubscriptionUpdated, "sub_c", "price_premium", SubscriptionStatusActive, 12, 2900)
	if _, err := svc.ProcessEvent(context.Background(), ev, []byte(`{}`)); err != nil {
		t.Fatalf("setup event: %v", err)
	}

	later := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return later }

	if err := svc.CancelSubscription(context.Background(), 12); err != nil {
		t.Fatalf("CancelSubscription: %v", err)
	}
	if len(provider.canceled) != 1 || provider.canceled[0] != "sub_c" {
		t.Fatalf("provider cancel calls = %v, want [sub_c]", provider.canceled)
	}

	current, _ := repo.CurrentPlanHistory(12)
	if current.Plan != string(entitlements.PlanFree) || current.ChangeType != models.ChangeTypeDowngrade {
		t.Fatalf("after cancel: plan=%s changeType=%s, want free downgrade", current.Plan, current.ChangeType)
	}
	if repo.premium[12] {
		t.Fatalf("canceled user must not stay premium")
	}

	if err := svc.CancelSubscription(context.Background(), 12); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("second cancel: %v, want ErrNoActiveSubscription", err)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	svc, repo, provider := newTestService(t)
	t.Setenv("PUBLIC_DOMAIN", "https://careerpilot.example")

	repo.users[20] = &models.User{ID: 20, Name: "Test User", Email: "test@example.com"}
	provider.checkout = &CheckoutSession{
		ID:       "cs_new",
		Customer: "cus_123",
		URL:      "https://checkout.example/cs_new",
	}

	sess, err := svc.CreateCheckoutSession(context.Background(), 20, entitlements.PlanPremium)
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if sess.URL == "" {
		t.Fatalf("expected a redirect URL")
	}

	user, _ := repo.GetUser(20)
	if user.StripeCustomerID != "cus_123" {
		t.Fatalf("customer id not stored: %q", user.StripeCustomerID)
	}

	if _, err := svc.CreateCheckoutSession(context.Background(), 20, entitlements.PlanFree); err == nil {
		t.Fatalf("expected checkout for free plan to fail")
	}
}

func TestSubscriptionIDFromRecordID(t *testing.T) {
	if got := SubscriptionIDFromRecordID("sub_1"); got != "sub_1" {
		t.Fatalf("verbatim id: got %q", got)
	}
	if got := SubscriptionIDFromRecordID("sub_1:a1b2c3d4"); got != "sub_1" {
		t.Fatalf("suffixed id: got %q", got)
	}
}
