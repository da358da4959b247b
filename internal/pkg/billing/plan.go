package billing

import (
	"strings"

	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

// PriceIDForPlan resolves the configured provider price id for a paid plan.
func PriceIDForPlan(plan entitlements.Plan) string {
	switch plan {
	case entitlements.PlanBasic:
		return strings.TrimSpace(env.GetEnv("STRIPE_PRICE_BASIC", ""))
	case entitlements.PlanPremium:
		return strings.TrimSpace(env.GetEnv("STRIPE_PRICE_PREMIUM", ""))
	default:
		return ""
	}
}

// PlanFromPriceID maps a provider price id to the internal plan. The second
// return value is false when the id is not a configured price; callers fall
// back to free and log the mismatch rather than granting entitlement from a
// misconfiguration.
func PlanFromPriceID(priceID string) (entitlements.Plan, bool) {
	id := strings.TrimSpace(priceID)
	if id == "" {
		return entitlements.PlanFree, false
	}
	if basic := PriceIDForPlan(entitlements.PlanBasic); basic != "" && id == basic {
		return entitlements.PlanBasic, true
	}
	if premium := PriceIDForPlan(entitlements.PlanPremium); premium != "" && id == premium {
		return entitlements.PlanPremium, true
	}
	return entitlements.PlanFree, false
}

// isLapsedStatus reports whether a provider subscription status forces a
// downgrade to free.
func isLapsedStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case SubscriptionStatusCanceled, SubscriptionStatusUnpaid:
		return true
	default:
		return false
	}
}

// isDelinquentStatus reports whether a failed invoice on this status
// downgrades the user.
func isDelinquentStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case SubscriptionStatusPastDue, SubscriptionStatusUnpaid:
		return true
	default:
		return false
	}
}
