package entitlement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpdf/server/internal/module/billing"
)

func newTestGate() *Gate {
	return NewGate(billing.NewCatalog())
}

func TestGate_UnlimitedNeverDenies(t *testing.T) {
	gate := newTestGate()
	huge := Usage{Documents: 1 << 40, Tokens: 1 << 50, Users: 1 << 30}

	d, err := gate.CheckDocumentUpload(billing.PlanEnterprise, huge, 100)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckUserCreation(billing.PlanEnterprise, huge)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckTokenUsage(billing.PlanEnterprise, huge, 1<<50)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckThreadCreation(billing.PlanEnterprise, 1<<40)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckMessageCreation(billing.PlanEnterprise, 1<<40)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckRetention(billing.PlanEnterprise, 1<<30)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGate_CheckDocumentUpload_CountBoundary(t *testing.T) {
	gate := newTestGate()

	// Free plan allows 5 documents.
	d, err := gate.CheckDocumentUpload(billing.PlanFree, Usage{Documents: 4}, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Usage exactly equal to the limit is a denial.
	d, err = gate.CheckDocumentUpload(billing.PlanFree, Usage{Documents: 5}, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.NotEmpty(t, d.Reason)
	assert.True(t, d.UpgradeRequired)
}

func TestGate_CheckDocumentUpload_FileSize(t *testing.T) {
	gate := newTestGate()

	// Free plan caps files at 10MB; exactly 10MB is fine.
	d, err := gate.CheckDocumentUpload(billing.PlanFree, Usage{}, 10)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckDocumentUpload(billing.PlanFree, Usage{}, 11)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "file size")
}

func TestGate_CheckTokenUsage_BoundaryAsymmetry(t *testing.T) {
	gate := newTestGate()

	// Free plan allows 50K tokens/month. Spending up to exactly the cap
	// is allowed, unlike the count checks which deny at the cap.
	d, err := gate.CheckTokenUsage(billing.PlanFree, Usage{Tokens: 40_000}, 10_000)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "reaching the cap exactly must be allowed")

	d, err = gate.CheckTokenUsage(billing.PlanFree, Usage{Tokens: 40_000}, 10_001)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.NotEmpty(t, d.Reason)

	// The asymmetry: a document count sitting exactly at its limit denies,
	// a token total sitting exactly at its limit does not.
	docs, err := gate.CheckDocumentUpload(billing.PlanFree, Usage{Documents: 5}, 1)
	require.NoError(t, err)
	tokens, err := gate.CheckTokenUsage(billing.PlanFree, Usage{Tokens: 50_000}, 0)
	require.NoError(t, err)
	assert.False(t, docs.Allowed)
	assert.True(t, tokens.Allowed)
}

func TestGate_CheckUserCreation(t *testing.T) {
	gate := newTestGate()

	d, err := gate.CheckUserCreation(billing.PlanFree, Usage{Users: 1})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckUserCreation(billing.PlanFree, Usage{Users: 2})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGate_CheckThreadAndMessageCreation(t *testing.T) {
	gate := newTestGate()

	d, err := gate.CheckThreadCreation(billing.PlanStarter, 24)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckThreadCreation(billing.PlanStarter, 25)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = gate.CheckMessageCreation(billing.PlanStarter, 199)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckMessageCreation(billing.PlanStarter, 200)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGate_CheckConcurrentUploads(t *testing.T) {
	gate := newTestGate()

	d, err := gate.CheckConcurrentUploads(billing.PlanFree, 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckConcurrentUploads(billing.PlanFree, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Enterprise has a finite concurrency cap too; there is no unlimited
	// sentinel on this field.
	d, err = gate.CheckConcurrentUploads(billing.PlanEnterprise, 10)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGate_CheckRetention(t *testing.T) {
	gate := newTestGate()

	// Free plan retains 30 days; a document exactly 30 days old is kept.
	d, err := gate.CheckRetention(billing.PlanFree, 30)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CheckRetention(billing.PlanFree, 31)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGate_FeatureGates(t *testing.T) {
	gate := newTestGate()

	tests := []struct {
		name    string
		planID  string
		check   func(string) (Decision, error)
		allowed bool
	}{
		{"slack denied on free", billing.PlanFree, gate.CheckSlackIntegration, false},
		{"slack allowed on professional", billing.PlanProfessional, gate.CheckSlackIntegration, true},
		{"api denied on starter", billing.PlanStarter, gate.CheckAPIAccess, false},
		{"api allowed on enterprise", billing.PlanEnterprise, gate.CheckAPIAccess, true},
		{"priority support denied on professional", billing.PlanProfessional, gate.CheckPrioritySupport, false},
		{"priority support allowed on enterprise", billing.PlanEnterprise, gate.CheckPrioritySupport, true},
		{"custom branding denied on free", billing.PlanFree, gate.CheckCustomBranding, false},
		{"custom branding allowed on enterprise", billing.PlanEnterprise, gate.CheckCustomBranding, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.check(tt.planID)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, d.Reason)
				assert.True(t, d.UpgradeRequired)
			}
		})
	}
}

func TestGate_UnknownPlan(t *testing.T) {
	gate := newTestGate()

	_, err := gate.CheckDocumentUpload("gold", Usage{}, 1)
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)

	err = gate.EnforceSlackIntegration("gold")
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}

func TestGate_EnforceMirrorsCheck(t *testing.T) {
	gate := newTestGate()
	overLimit := Usage{Documents: 5, Tokens: 50_000, Users: 2}

	tests := []struct {
		name    string
		enforce func() error
		denied  bool
	}{
		{"document upload denied", func() error {
			return gate.EnforceDocumentUpload(billing.PlanFree, overLimit, 1)
		}, true},
		{"document upload allowed", func() error {
			return gate.EnforceDocumentUpload(billing.PlanFree, Usage{}, 1)
		}, false},
		{"user creation denied", func() error {
			return gate.EnforceUserCreation(billing.PlanFree, overLimit)
		}, true},
		{"token usage denied", func() error {
			return gate.EnforceTokenUsage(billing.PlanFree, overLimit, 1)
		}, true},
		{"token usage allowed at cap", func() error {
			return gate.EnforceTokenUsage(billing.PlanFree, overLimit, 0)
		}, false},
		{"thread creation denied", func() error {
			return gate.EnforceThreadCreation(billing.PlanFree, 5)
		}, true},
		{"message creation denied", func() error {
			return gate.EnforceMessageCreation(billing.PlanFree, 50)
		}, true},
		{"concurrent uploads denied", func() error {
			return gate.EnforceConcurrentUploads(billing.PlanFree, 1)
		}, true},
		{"retention denied", func() error {
			return gate.EnforceRetention(billing.PlanFree, 31)
		}, true},
		{"slack denied", func() error {
			return gate.EnforceSlackIntegration(billing.PlanFree)
		}, true},
		{"slack allowed", func() error {
			return gate.EnforceSlackIntegration(billing.PlanEnterprise)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.enforce()
			if !tt.denied {
				assert.NoError(t, err)
				return
			}
			denied, ok := AsDenied(err)
			require.True(t, ok, "expected a DeniedError, got %v", err)
			assert.NotEmpty(t, denied.Reason)
			assert.True(t, denied.UpgradeRequired)
		})
	}
}

func TestGate_ConcurrentCallsDoNotInterfere(t *testing.T) {
	gate := newTestGate()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d, err := gate.CheckDocumentUpload(billing.PlanFree, Usage{Documents: 5}, 1)
			assert.NoError(t, err)
			assert.False(t, d.Allowed)
		}()
		go func() {
			defer wg.Done()
			d, err := gate.CheckDocumentUpload(billing.PlanEnterprise, Usage{Documents: 5}, 1)
			assert.NoError(t, err)
			assert.True(t, d.Allowed)
		}()
	}
	wg.Wait()
}
