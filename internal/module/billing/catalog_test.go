package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListPlansOrder(t *testing.T) {
	catalog := NewCatalog()

	plans := catalog.ListPlans()
	require.Len(t, plans, 4)
	assert.Equal(t, PlanFree, plans[0].ID)
	assert.Equal(t, PlanStarter, plans[1].ID)
	assert.Equal(t, PlanProfessional, plans[2].ID)
	assert.Equal(t, PlanEnterprise, plans[3].ID)
}

func TestCatalog_GetPlan(t *testing.T) {
	catalog := NewCatalog()

	plan, err := catalog.GetPlan(PlanStarter)
	require.NoError(t, err)
	assert.Equal(t, "Starter", plan.Name)
	assert.Equal(t, Limit(50), plan.Limits.MaxDocuments)

	_, err = catalog.GetPlan("gold")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCatalog_EnterpriseUnlimited(t *testing.T) {
	catalog := NewCatalog()

	plan, err := catalog.GetPlan(PlanEnterprise)
	require.NoError(t, err)
	assert.True(t, plan.Limits.MaxDocuments.IsUnlimited())
	assert.True(t, plan.Limits.MaxTokensPerMonth.IsUnlimited())
	assert.True(t, plan.Limits.MaxUsers.IsUnlimited())
	assert.True(t, plan.Limits.MaxHistoryRetentionDays.IsUnlimited())
	// File size and upload concurrency stay finite on every plan.
	assert.Positive(t, plan.Limits.MaxFileSizeMB)
	assert.Positive(t, plan.Limits.MaxConcurrentUploads)
}

func TestCatalog_WithPrices(t *testing.T) {
	catalog := NewCatalogWithPrices(map[string]string{
		PlanStarter: "price_starter_123",
		"gold":      "price_ignored",
	})

	plan, err := catalog.GetPlan(PlanStarter)
	require.NoError(t, err)
	assert.Equal(t, "price_starter_123", plan.StripePriceID)

	free, err := catalog.GetPlan(PlanFree)
	require.NoError(t, err)
	assert.Empty(t, free.StripePriceID)
}

func TestLimit_Serialization(t *testing.T) {
	assert.Equal(t, int64(-1), Unlimited.Int64())
	assert.True(t, Unlimited.IsUnlimited())
	assert.False(t, Limit(0).IsUnlimited())
	assert.False(t, Limit(100).IsUnlimited())
}
