package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

// ErrNoActiveSubscription is returned when a user-initiated cancellation finds
// no paid plan to cancel.
var ErrNoActiveSubscription = errors.New("no active subscription")

// Service reconciles billing provider events into the plan history log and
// the user premium flag.
type Service struct {
	repo     Repository
	provider ProviderClient
	now      func() time.Time
}

// NewService creates a reconciler from an injected repository and provider client.
func NewService(repo Repository, provider ProviderClient) *Service {
	return &Service{repo: repo, provider: provider, now: time.Now}
}

// NewServiceFromDB creates a reconciler from a GORM DB handle and the
// environment-configured provider client.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewStripeClientFromEnv())
}

// ProcessEvent applies one webhook event. The idempotency claim and every
// resulting write happen in a single transaction: a failure after the claim
// rolls the claim back too, so the provider's retry can reprocess the event.
// Returns true when the event id was already claimed and nothing was done.
func (s *Service) ProcessEvent(ctx context.Context, ev *Event, payload []byte) (bool, error) {
	apply, err := s.prepare(ctx, ev)
	if err != nil {
		return false, err
	}

	skipped := false
	err = s.repo.Transaction(func(r Repository) error {
		claimed, stored, err := r.ClaimWebhookEvent(&models.ProcessedWebhookEvent{
			EventID:     ev.ID,
			EventType:   ev.Type,
			PayloadJSON: string(payload),
		})
		if err != nil {
			return err
		}
		if !claimed {
			skipped = true
			return nil
		}
		if err := apply(r); err != nil {
			return err
		}
		return r.MarkWebhookProcessed(stored.ID, "")
	})
	return skipped, err
}

// prepare resolves provider-side data up front and returns the transactional
// apply step. Provider reads are idempotent and must not hold a database
// transaction open.
func (s *Service) prepare(ctx context.Context, ev *Event) (func(Repository) error, error) {
	switch ev.Type {
	case EventCheckoutSessionCompleted:
		return s.prepareCheckoutCompleted(ctx, ev)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		return s.prepareSubscriptionChanged(ev)
	case EventInvoicePaymentFailed:
		return s.prepareInvoiceFailed(ctx, ev)
	default:
		return nil, fmt.Errorf("unsupported event type %q", ev.Type)
	}
}

func (s *Service) prepareCheckoutCompleted(ctx context.Context, ev *Event) (func(Repository) error, error) {
	sess, err := ParseCheckoutSession(ev.Data.Object)
	if err != nil {
		return nil, err
	}
	if sess.Mode != "" && sess.Mode != "subscription" {
		return applyNothing, nil
	}
	userID, err := UserIDFromMetadata(sess.Metadata)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sess.Subscription) == "" {
		return nil, fmt.Errorf("checkout session %s carries no subscription", sess.ID)
	}

	// Attach the user association to the subscription so later subscription
	// events can be routed without a session lookup.
	if err := s.provider.UpdateSubscriptionMetadata(ctx, sess.Subscription, map[string]string{
		MetadataUserIDKey: strconv.FormatUint(uint64(userID), 10),
	}); err != nil {
		return nil, err
	}
	sub, err := s.provider.GetSubscription(ctx, sess.Subscription)
	if err != nil {
		return nil, err
	}

	plan := s.resolvePlan(sub.PriceID())
	amount := minorToMajor(sess.AmountTotal)

	return func(r Repository) error {
		rec := models.NewPlanHistory(sess.Subscription, userID, plan, models.ChangeTypeNew, amount, s.now())
		if err := r.AppendPlanHistory(rec); err != nil {
			return err
		}
		return r.SetUserPremium(userID, entitlements.IsPaid(plan))
	}, nil
}

func (s *Service) prepareSubscriptionChanged(ev *Event) (func(Repository) error, error) {
	sub, err := ParseSubscription(ev.Data.Object)
	if err != nil {
		return nil, err
	}
	userID, err := UserIDFromMetadata(sub.Metadata)
	if err != nil {
		return nil, err
	}

	plan := s.resolvePlan(sub.PriceID())
	amount := decimal.Zero
	if len(sub.Items.Data) > 0 {
		amount = minorToMajor(sub.Items.Data[0].Price.UnitAmount)
	}
	lapsed := ev.Type == EventSubscriptionDeleted || isLapsedStatus(sub.Status)

	return func(r Repository) error {
		last, err := r.CurrentPlanHistory(userID)
		if err != nil {
			// Classification must never block reconciliation; fall back to NEW.
			log.Printf("billing: reading plan history for user %d failed, classifying as new: %v", userID, err)
			last = nil
		}
		changeType := Classify(plan, last)

		now := s.now()
		rec := models.NewPlanHistory(planHistoryRecordID(sub.ID, last), userID, plan, changeType, amount, now)
		if err := r.AppendPlanHistory(rec); err != nil {
			return err
		}

		premium := entitlements.IsPaid(plan)
		if lapsed {
			// The cancellation itself gets an explicit terminal free record,
			// regardless of how the event's plan classified.
			free := models.NewPlanHistory(
				planHistoryRecordID(sub.ID, rec),
				userID,
				entitlements.PlanFree,
				models.ChangeTypeDowngrade,
				decimal.Zero,
				now.Add(time.Second),
			)
			if err := r.AppendPlanHistory(free); err != nil {
				return err
			}
			premium = false
		}
		return r.SetUserPremium(userID, premium)
	}, nil
}

func (s *Service) prepareInvoiceFailed(ctx context.Context, ev *Event) (func(Repository) error, error) {
	inv, err := ParseInvoice(ev.Data.Object)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(inv.Subscription) == "" {
		// One-off invoices are not subscription-relevant.
		return applyNothing, nil
	}
	sub, err := s.provider.GetSubscription(ctx, inv.Subscription)
	if err != nil {
		return nil, err
	}
	if !isDelinquentStatus(sub.Status) {
		return applyNothing, nil
	}
	userID, err := UserIDFromMetadata(sub.Metadata)
	if err != nil {
		return nil, err
	}

	return func(r Repository) error {
		last, err := r.CurrentPlanHistory(userID)
		if err != nil {
			last = nil
		}
		free := models.NewPlanHistory(
			planHistoryRecordID(sub.ID, last),
			userID,
			entitlements.PlanFree,
			models.ChangeTypeDowngrade,
			decimal.Zero,
			s.now(),
		)
		if err := r.AppendPlanHistory(free); err != nil {
			return err
		}
		return r.SetUserPremium(userID, false)
	}, nil
}

// ExpireLapsedPlans downgrades every user whose current paid plan record has
// passed its expiration date. Returns how many users were downgraded.
func (s *Service) ExpireLapsedPlans(ctx context.Context) (int, error) {
	_ = ctx
	expired, err := s.repo.ListExpiredPlanHistories(s.now())
	if err != nil {
		return 0, err
	}

	downgraded := 0
	for _, rec := range expired {
		err := s.repo.Transaction(func(r Repository) error {
			current, err := r.CurrentPlanHistory(rec.UserID)
			if err != nil {
				return err
			}
			// A newer record may have arrived since the listing; only the
			// still-current, still-expired record triggers a downgrade.
			if current == nil || current.ID != rec.ID || !current.IsExpired(s.now()) {
				return nil
			}
			free := models.NewPlanHistory(
				uuid.NewString(),
				rec.UserID,
				entitlements.PlanFree,
				models.ChangeTypeDowngrade,
				decimal.Zero,
				s.now(),
			)
			if err := r.AppendPlanHistory(free); err != nil {
				return err
			}
			downgraded++
			return r.SetUserPremium(rec.UserID, false)
		})
		if err != nil {
			return downgraded, err
		}
	}
	return downgraded, nil
}

// CancelSubscription cancels the user's subscription at the provider and
// records the downgrade locally.
func (s *Service) CancelSubscription(ctx context.Context, userID uint) error {
	current, err := s.repo.CurrentPlanHistory(userID)
	if err != nil {
		return err
	}
	if current == nil || !entitlements.IsPaid(current.PlanValue()) {
		return ErrNoActiveSubscription
	}

	if err := s.provider.CancelSubscription(ctx, SubscriptionIDFromRecordID(current.ID)); err != nil {
		return err
	}

	return s.repo.Transaction(func(r Repository) error {
		free := models.NewPlanHistory(
			planHistoryRecordID(SubscriptionIDFromRecordID(current.ID), current),
			userID,
			entitlements.PlanFree,
			models.ChangeTypeDowngrade,
			decimal.Zero,
			s.now(),
		)
		if err := r.AppendPlanHistory(free); err != nil {
			return err
		}
		return r.SetUserPremium(userID, false)
	})
}

// CreateCheckoutSession starts a provider checkout for a paid plan and
// returns the session with its redirect URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uint, plan entitlements.Plan) (*CheckoutSession, error) {
	priceID := PriceIDForPlan(plan)
	if priceID == "" {
		return nil, fmt.Errorf("no price configured for plan %q", plan)
	}

	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutSessionParams{
		PriceID:    priceID,
		Customer:   user.StripeCustomerID,
		SuccessURL: base + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  base + "/billing/cancel",
		Metadata: map[string]string{
			MetadataUserIDKey: strconv.FormatUint(uint64(userID), 10),
		},
	})
	if err != nil {
		return nil, err
	}

	if sess.Customer != "" && sess.Customer != user.StripeCustomerID {
		user.StripeCustomerID = sess.Customer
		if err := s.repo.SaveUser(user); err != nil {
			log.Printf("billing: storing customer id for user %d failed: %v", userID, err)
		}
	}
	return sess, nil
}

// CurrentPlan resolves the user's current plan from the latest plan history
// record. Users without history are on the free plan.
func (s *Service) CurrentPlan(userID uint) (entitlements.Plan, *models.PlanHistory, error) {
	current, err := s.repo.CurrentPlanHistory(userID)
	if err != nil {
		return entitlements.PlanFree, nil, err
	}
	if current == nil {
		return entitlements.PlanFree, nil, nil
	}
	return current.PlanValue(), current, nil
}

// resolvePlan maps a provider price id to a plan, defaulting unknown ids to
// free so a misconfiguration can never grant unintended entitlement.
func (s *Service) resolvePlan(priceID string) entitlements.Plan {
	plan, known := PlanFromPriceID(priceID)
	if !known {
		log.Printf("billing: price id %q is not configured, mapping to free plan", priceID)
	}
	return plan
}

func applyNothing(Repository) error { return nil }

// planHistoryRecordID derives a record id from the provider subscription id.
// The first record for a subscription uses the id verbatim; later records get
// a suffix since the log is append-only and ids must stay unique.
func planHistoryRecordID(subscriptionID string, last *models.PlanHistory) string {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return uuid.NewString()
	}
	if last == nil {
		return id
	}
	return id + ":" + uuid.NewString()[:8]
}

// SubscriptionIDFromRecordID recovers the provider subscription id from a
// plan history record id.
func SubscriptionIDFromRecordID(recordID string) string {
	return strings.SplitN(recordID, ":", 2)[0]
}

func minorToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
