package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpdf/server/internal/module/billing"
)

func TestCalculateOverageCharges_WithinLimits(t *testing.T) {
	gate := newTestGate()

	charges, err := gate.CalculateOverageCharges(billing.PlanFree, Usage{
		Documents: 3, Tokens: 10_000, Users: 1,
	})
	require.NoError(t, err)
	assert.Zero(t, charges.Total)
	assert.Empty(t, charges.Breakdown)
}

func TestCalculateOverageCharges_Documents(t *testing.T) {
	gate := newTestGate()

	// Free allows 5 documents; 7 used means 2 over at $0.50 each.
	charges, err := gate.CalculateOverageCharges(billing.PlanFree, Usage{Documents: 7})
	require.NoError(t, err)
	assert.Equal(t, 1.00, charges.Breakdown["documents"])
	assert.Equal(t, 1.00, charges.Total)
}

func TestCalculateOverageCharges_AllDimensions(t *testing.T) {
	gate := newTestGate()

	// Free: 5 docs, 50K tokens, 2 users.
	charges, err := gate.CalculateOverageCharges(billing.PlanFree, Usage{
		Documents: 7,      // 2 over  -> $1.00
		Tokens:    55_000, // 5K over -> $0.10
		Users:     4,      // 2 over  -> $10.00
	})
	require.NoError(t, err)
	assert.Equal(t, 1.00, charges.Breakdown["documents"])
	assert.Equal(t, 0.10, charges.Breakdown["tokens"])
	assert.Equal(t, 10.00, charges.Breakdown["users"])
	assert.Equal(t, 11.10, charges.Total)
}

func TestCalculateOverageCharges_UnlimitedNeverAccrues(t *testing.T) {
	gate := newTestGate()

	charges, err := gate.CalculateOverageCharges(billing.PlanEnterprise, Usage{
		Documents: 1 << 30, Tokens: 1 << 40, Users: 1 << 20,
	})
	require.NoError(t, err)
	assert.Zero(t, charges.Total)
	assert.Empty(t, charges.Breakdown)
}

func TestCalculateOverageCharges_UnknownPlan(t *testing.T) {
	gate := newTestGate()

	_, err := gate.CalculateOverageCharges("gold", Usage{})
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}
