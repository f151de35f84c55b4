package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpdf/server/internal/module/billing"
)

func TestUpgradeRecommendations_FreeAtDocumentCap(t *testing.T) {
	gate := newTestGate()

	rec, err := gate.UpgradeRecommendations(billing.PlanFree, Usage{Documents: 5})
	require.NoError(t, err)

	assert.Equal(t, 100.0, rec.UsagePercent["documents"])
	assert.Contains(t, rec.Reasons, "documents usage at 100% of limit")
	// Starter is the first plan after free whose document limit fits.
	assert.Equal(t, billing.PlanStarter, rec.RecommendedPlan)
}

func TestUpgradeRecommendations_BelowThresholdNoReasons(t *testing.T) {
	gate := newTestGate()

	rec, err := gate.UpgradeRecommendations(billing.PlanFree, Usage{
		Documents: 2, Tokens: 10_000, Users: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, rec.Reasons)
	assert.InDelta(t, 40.0, rec.UsagePercent["documents"], 0.001)
	assert.InDelta(t, 20.0, rec.UsagePercent["tokens"], 0.001)
	assert.InDelta(t, 50.0, rec.UsagePercent["users"], 0.001)
}

func TestUpgradeRecommendations_FirstFitNotBestFit(t *testing.T) {
	gate := newTestGate()

	// A starter org with tiny usage fits the free plan, and free comes
	// first in catalog order: first fit, not best fit.
	rec, err := gate.UpgradeRecommendations(billing.PlanStarter, Usage{
		Documents: 2, Tokens: 1_000, Users: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, billing.PlanFree, rec.RecommendedPlan)
}

func TestUpgradeRecommendations_SkipsPlansThatDoNotFit(t *testing.T) {
	gate := newTestGate()

	// 60 documents rules out free (5) and starter (50); professional (500)
	// is the first fit.
	rec, err := gate.UpgradeRecommendations(billing.PlanStarter, Usage{Documents: 60})
	require.NoError(t, err)
	assert.Equal(t, billing.PlanProfessional, rec.RecommendedPlan)
}

func TestUpgradeRecommendations_NoPlanFits(t *testing.T) {
	gate := newTestGate()

	// Enterprise is the current plan and the only one with unlimited
	// documents, so nothing else can fit this usage.
	rec, err := gate.UpgradeRecommendations(billing.PlanEnterprise, Usage{Documents: 1 << 30})
	require.NoError(t, err)
	assert.Empty(t, rec.RecommendedPlan)
	// All enterprise usage dimensions are unlimited: no percentages.
	assert.Empty(t, rec.UsagePercent)
	assert.Empty(t, rec.Reasons)
}

func TestUpgradeRecommendations_UnknownPlan(t *testing.T) {
	gate := newTestGate()

	_, err := gate.UpgradeRecommendations("gold", Usage{})
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}
