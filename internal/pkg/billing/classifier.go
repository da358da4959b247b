package billing

import (
	"github.com/careerpilot/careerpilot/app/models"
	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

// Classify determines what kind of plan change an incoming subscription plan
// represents relative to the user's last plan history record. The caller must
// resolve last as the record with the greatest plan change date, never an
// arbitrary one; nil means the user has no prior history.
func Classify(newPlan entitlements.Plan, last *models.PlanHistory) string {
	if last == nil {
		return models.ChangeTypeNew
	}
	switch entitlements.Compare(newPlan, last.PlanValue()) {
	case 0:
		return models.ChangeTypeRenewal
	case 1:
		return models.ChangeTypeUpgrade
	default:
		return models.ChangeTypeDowngrade
	}
}
