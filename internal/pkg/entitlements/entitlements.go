package entitlements

import "strings"

// Plan is the internal billing tier. Plans form a total order used by the
// change classifier: Free < Basic < Premium.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// ParsePlan normalizes arbitrary plan strings to a known plan, defaulting to free.
func ParsePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanBasic):
		return PlanBasic
	case string(PlanPremium):
		return PlanPremium
	default:
		return PlanFree
	}
}

// Rank returns the position of a plan in the total order.
func Rank(plan Plan) int {
	switch plan {
	case PlanPremium:
		return 2
	case PlanBasic:
		return 1
	default:
		return 0
	}
}

// Compare returns -1, 0 or 1 when a ranks below, equal to or above b.
func Compare(a, b Plan) int {
	ra, rb := Rank(a), Rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// IsPaid reports whether a plan grants paid entitlements.
func IsPaid(plan Plan) bool {
	return Rank(plan) > 0
}

// ResourceType identifies a quota-metered resource.
type ResourceType string

const (
	ResourceProfiles      ResourceType = "profiles"
	ResourceResumes       ResourceType = "resumes"
	ResourceOpportunities ResourceType = "opportunities"
	ResourceInteractions  ResourceType = "interactions"
	ResourceContacts      ResourceType = "contacts"
)

// ResourceTypes lists every metered resource type.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceProfiles,
		ResourceResumes,
		ResourceOpportunities,
		ResourceInteractions,
		ResourceContacts,
	}
}

// ValidResourceType reports whether rt names a known metered resource.
func ValidResourceType(rt ResourceType) bool {
	switch rt {
	case ResourceProfiles, ResourceResumes, ResourceOpportunities, ResourceInteractions, ResourceContacts:
		return true
	default:
		return false
	}
}

// QuotaSet is the set of usage quotas granted when a plan change is recorded.
type QuotaSet struct {
	Interactions  int `json:"interactions"`
	Profiles      int `json:"profiles"`
	Resumes       int `json:"resumes"`
	Opportunities int `json:"opportunities"`
	Contacts      int `json:"contacts"`
}

// Grants returns the quota snapshot a plan confers at the time of a plan change.
func Grants(plan Plan) QuotaSet {
	switch plan {
	case PlanPremium:
		return QuotaSet{Interactions: 200, Profiles: 10, Resumes: 100, Opportunities: 200, Contacts: 200}
	case PlanBasic:
		return QuotaSet{Interactions: 50, Profiles: 3, Resumes: 25, Opportunities: 50, Contacts: 50}
	default:
		return QuotaSet{Interactions: 10, Profiles: 1, Resumes: 5, Opportunities: 10, Contacts: 10}
	}
}

// Get returns the quota for a single resource type. The second return value
// is false for unknown resource types.
func (q QuotaSet) Get(rt ResourceType) (int, bool) {
	switch rt {
	case ResourceInteractions:
		return q.Interactions, true
	case ResourceProfiles:
		return q.Profiles, true
	case ResourceResumes:
		return q.Resumes, true
	case ResourceOpportunities:
		return q.Opportunities, true
	case ResourceContacts:
		return q.Contacts, true
	default:
		return 0, false
	}
}
