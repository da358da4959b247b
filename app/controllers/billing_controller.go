package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/billing"
	"github.com/careerpilot/careerpilot/internal/pkg/database"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

// HandleBillingWebhook receives billing provider events. The signature check
// happens before any state change; duplicate deliveries answer 200 with
// status=skipped so the provider stops retrying.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	if !billing.VerifyWebhookSignature(rawBody, signature, secret) {
		log.Printf("[Billing] webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := billing.ParseEvent(rawBody)
	if err != nil {
		log.Printf("[Billing] webhook payload rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if !billing.IsRelevantEventType(ev.Type) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	skipped, err := svc.ProcessEvent(ctx, ev, rawBody)
	if err != nil {
		log.Printf("[Billing] processing event %s (%s) failed: %v", ev.ID, ev.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error processing event " + ev.Type})
	}
	if skipped {
		log.Printf("[Billing] event %s already processed, skipping", ev.ID)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "status": "skipped"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// HandleCreateCheckout starts a hosted checkout session for the requested plan.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		Plan string `json:"plan" validate:"required,oneof=basic premium"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": validationMessage(err)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	sess, err := svc.CreateCheckoutSession(ctx, userCtx.UserID, entitlements.Plan(req.Plan))
	if err != nil {
		log.Printf("[Billing] checkout session for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create checkout session"})
	}

	return c.JSON(fiber.Map{"checkout_url": sess.URL, "session_id": sess.ID})
}

// HandleCancelSubscription cancels the user's active subscription with the
// provider and records the downgrade to free.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	if err := svc.CancelSubscription(ctx, userCtx.UserID); err != nil {
		if errors.Is(err, billing.ErrNoActiveSubscription) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no_active_subscription", "message": "There is no active paid subscription to cancel"})
		}
		log.Printf("[Billing] cancel subscription for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to cancel subscription"})
	}

	invalidateUserCaches(userCtx.UserID)
	return c.JSON(fiber.Map{"canceled": true, "plan": string(entitlements.PlanFree)})
}

// HandleGetPlanStatus returns the current plan, remaining quotas and history.
func HandleGetPlanStatus(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	plan, current, err := svc.CurrentPlan(userCtx.UserID)
	if err != nil {
		log.Printf("[Billing] plan status for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plan status"})
	}

	response := fiber.Map{
		"plan":    string(plan),
		"is_paid": entitlements.IsPaid(plan),
		"grants":  quotaMap(entitlements.Grants(plan)),
	}
	if current != nil {
		response["change_type"] = current.ChangeType
		response["plan_since"] = current.PlanChangeDate.UTC().Format(time.RFC3339)
		response["remaining"] = quotaMap(current.Quotas())
		if current.ExpirationDate != nil {
			response["expires_at"] = current.ExpirationDate.UTC().Format(time.RFC3339)
		}
	} else {
		response["remaining"] = quotaMap(entitlements.Grants(plan))
	}

	return c.JSON(response)
}

// HandleListPlanHistory returns the full append-only plan change log, newest first.
func HandleListPlanHistory(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	records, err := repository.GetGlobalRepositories().PlanHistory.ListByUser(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plan history"})
	}

	items := make([]fiber.Map, 0, len(records))
	for i := range records {
		rec := &records[i]
		item := fiber.Map{
			"id":          rec.ID,
			"plan":        rec.Plan,
			"change_type": rec.ChangeType,
			"amount_paid": rec.AmountPaid.StringFixed(2),
			"changed_at":  rec.PlanChangeDate.UTC().Format(time.RFC3339),
		}
		if rec.ExpirationDate != nil {
			item["expires_at"] = rec.ExpirationDate.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{"history": items, "count": len(items)})
}

func quotaMap(qs entitlements.QuotaSet) fiber.Map {
	m := fiber.Map{}
	for _, rt := range entitlements.ResourceTypes() {
		v, _ := qs.Get(rt)
		m[string(rt)] = v
	}
	return m
}
