package billing

import (
	"testing"

	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

func TestPlanFromPriceID(t *testing.T) {
	t.Setenv("STRIPE_PRICE_BASIC", "price_basic_123")
	t.Setenv("STRIPE_PRICE_PREMIUM", "price_premium_456")

	tests := []struct {
		priceID string
		want    entitlements.Plan
		known   bool
	}{
		{priceID: "price_basic_123", want: entitlements.PlanBasic, known: true},
		{priceID: "price_premium_456", want: entitlements.PlanPremium, known: true},
		{priceID: "price_unknown", want: entitlements.PlanFree, known: false},
		{priceID: "", want: entitlements.PlanFree, known: false},
	}

	for _, tt := range tests {
		got, known := PlanFromPriceID(tt.priceID)
		if got != tt.want || known != tt.known {
			t.Fatalf("PlanFromPriceID(%q) = (%s, %v), want (%s, %v)", tt.priceID, got, known, tt.want, tt.known)
		}
	}
}

func TestPlanFromPriceID_Unconfigured(t *testing.T) {
	t.Setenv("STRIPE_PRICE_BASIC", "")
	t.Setenv("STRIPE_PRICE_PREMIUM", "")

	if _, known := PlanFromPriceID("price_basic_123"); known {
		t.Fatalf("expected unconfigured prices to map nothing")
	}
}

func TestLapsedAndDelinquentStatuses(t *testing.T) {
	if !isLapsedStatus("canceled") || !isLapsedStatus("unpaid") {
		t.Fatalf("expected canceled and unpaid to be lapsed")
	}
	if isLapsedStatus("active") || isLapsedStatus("past_due") || isLapsedStatus("") {
		t.Fatalf("expected non-terminal statuses not to be lapsed")
	}

	if !isDelinquentStatus("past_due") || !isDelinquentStatus("unpaid") {
		t.Fatalf("expected past_due and unpaid to be delinquent")
	}
	if isDelinquentStatus("active") || isDelinquentStatus("canceled") {
		t.Fatalf("expected active and canceled not to be delinquent")
	}
}
