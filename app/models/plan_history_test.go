package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerpilot/careerpilot/internal/pkg/entitlements"
)

func TestNewPlanHistorySnapshotsGrants(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewPlanHistory("sub_1", 7, entitlements.PlanBasic, ChangeTypeUpgrade, decimal.NewFromInt(9), now)

	grants := entitlements.Grants(entitlements.PlanBasic)
	assert.Equal(t, "sub_1", rec.ID)
	assert.Equal(t, uint(7), rec.UserID)
	assert.Equal(t, string(entitlements.PlanBasic), rec.Plan)
	assert.Equal(t, ChangeTypeUpgrade, rec.ChangeType)
	assert.Equal(t, grants, rec.Quotas())

	require.NotNil(t, rec.ExpirationDate)
	assert.Equal(t, now.AddDate(0, 0, PlanHistoryValidityDays), *rec.ExpirationDate)
}

func TestNewPlanHistoryFreeHasNoExpiration(t *testing.T) {
	rec := NewPlanHistory("rec_free", 7, entitlements.PlanFree, ChangeTypeDowngrade, decimal.Zero, time.Now())
	assert.Nil(t, rec.ExpirationDate)
	assert.Equal(t, entitlements.Grants(entitlements.PlanFree), rec.Quotas())
}

func TestPlanHistoryIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewPlanHistory("sub_2", 1, entitlements.PlanPremium, ChangeTypeNew, decimal.Zero, now)

	assert.False(t, rec.IsExpired(now))
	assert.False(t, rec.IsExpired(now.AddDate(0, 0, PlanHistoryValidityDays).Add(-time.Second)))
	assert.True(t, rec.IsExpired(now.AddDate(0, 0, PlanHistoryValidityDays)))

	free := NewPlanHistory("rec_f", 1, entitlements.PlanFree, ChangeTypeNew, decimal.Zero, now)
	assert.False(t, free.IsExpired(now.AddDate(10, 0, 0)))
}

func TestQuotaColumn(t *testing.T) {
	for _, rt := range entitlements.ResourceTypes() {
		col, ok := QuotaColumn(rt)
		require.True(t, ok, "resource %s must map to a column", rt)
		assert.Equal(t, "quota_"+string(rt), col)
	}

	_, ok := QuotaColumn(entitlements.ResourceType("storage"))
	assert.False(t, ok)
}

func TestPlanValueNormalizesUnknown(t *testing.T) {
	rec := NewPlanHistory("sub_3", 1, entitlements.PlanBasic, ChangeTypeNew, decimal.Zero, time.Now())
	rec.Plan = "enterprise"
	assert.Equal(t, entitlements.PlanFree, rec.PlanValue())
}
