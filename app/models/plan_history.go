package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

const (
	ChangeTypeNew       = "new"
	ChangeTypeUpgrade   = "upgrade"
	ChangeTypeDowngrade = "downgrade"
	ChangeTypeRenewal   = "renewal"
)

// PlanHistoryValidityDays is how long a plan change entitles the user before
// the expiration sweep downgrades them back to free.
const PlanHistoryValidityDays = 30

// PlanHistory is one entry in a user's append-only plan change log. The record
// with the greatest PlanChangeDate is the user's current plan and the only
// record whose quota columns may still be mutated (by the quota ledger).
type PlanHistory struct {
	ID             string          `gorm:"primaryKey;type:varchar(191)" json:"id"`
	UserID         uint            `gorm:"not null;index:idx_plan_histories_user_date,priority:1" json:"user_id"`
	Plan           string          `gorm:"type:varchar(50);not null;default:'free'" json:"plan"`
	ChangeType     string          `gorm:"type:varchar(20);not null" json:"change_type"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"amount_paid"`
	PlanChangeDate time.Time       `gorm:"type:timestamp;not null;index:idx_plan_histories_user_date,priority:2" json:"plan_change_date"`
	ExpirationDate *time.Time      `gorm:"type:timestamp;default:null;index" json:"expiration_date,omitempty"`

	// Quota snapshot granted at the time of the plan change. Decremented and
	// incremented in place by the quota ledger, never rewritten wholesale.
	QuotaInteractions  int `gorm:"not null;default:0" json:"quota_interactions"`
	QuotaProfiles      int `gorm:"not null;default:0" json:"quota_profiles"`
	QuotaResumes       int `gorm:"not null;default:0" json:"quota_resumes"`
	QuotaOpportunities int `gorm:"not null;default:0" json:"quota_opportunities"`
	QuotaContacts      int `gorm:"not null;default:0" json:"quota_contacts"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewPlanHistory builds a record for a plan change happening now, snapshotting
// the plan's quota grants. Terminal free downgrades carry no expiration date.
func NewPlanHistory(id string, userID uint, plan entitlements.Plan, changeType string, amountPaid decimal.Decimal, now time.Time) *PlanHistory {
	grants := entitlements.Grants(plan)
	rec := &PlanHistory{
		ID:                 id,
		UserID:             userID,
		Plan:               string(plan),
		ChangeType:         changeType,
		AmountPaid:         amountPaid,
		PlanChangeDate:     now,
		QuotaInteractions:  grants.Interactions,
		QuotaProfiles:      grants.Profiles,
		QuotaResumes:       grants.Resumes,
		QuotaOpportunities: grants.Opportunities,
		QuotaContacts:      grants.Contacts,
	}
	if plan != entitlements.PlanFree {
		exp := now.AddDate(0, 0, PlanHistoryValidityDays)
		rec.ExpirationDate = &exp
	}
	return rec
}

// PlanValue returns the record's plan as a typed plan.
func (p *PlanHistory) PlanValue() entitlements.Plan {
	return entitlements.ParsePlan(p.Plan)
}

// Quotas returns the current quota snapshot as a set.
func (p *PlanHistory) Quotas() entitlements.QuotaSet {
	return entitlements.QuotaSet{
		Interactions:  p.QuotaInteractions,
		Profiles:      p.QuotaProfiles,
		Resumes:       p.QuotaResumes,
		Opportunities: p.QuotaOpportunities,
		Contacts:      p.QuotaContacts,
	}
}

// Quota returns the remaining quota for one resource type. Returns false for
// unknown resource types.
func (p *PlanHistory) Quota(rt entitlements.ResourceType) (int, bool) {
	return p.Quotas().Get(rt)
}

// QuotaColumn maps a resource type to its database column. Used by the quota
// ledger to address a single counter inside a locked transaction.
func QuotaColumn(rt entitlements.ResourceType) (string, bool) {
	switch rt {
	case entitlements.ResourceInteractions:
		return "quota_interactions", true
	case entitlements.ResourceProfiles:
		return "quota_profiles", true
	case entitlements.ResourceResumes:
		return "quota_resumes", true
	case entitlements.ResourceOpportunities:
		return "quota_opportunities", true
	case entitlements.ResourceContacts:
		return "quota_contacts", true
	default:
		return "", false
	}
}

// IsExpired reports whether the record's entitlement window has lapsed.
func (p *PlanHistory) IsExpired(now time.Time) bool {
	return p.ExpirationDate != nil && !p.ExpirationDate.After(now)
}
