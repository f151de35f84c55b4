package entitlement

import (
	"math"

	"github.com/ragpdf/server/internal/module/billing"
)

// Overage unit rates in USD. Tokens are billed per thousand.
const (
	DocumentOverageRate  = 0.50
	TokenOverageRatePerK = 0.02
	UserOverageRate      = 5.00
)

// OverageCharges is an advisory bill for usage beyond plan limits.
// Dimensions within their limit contribute nothing and are omitted from
// the breakdown.
type OverageCharges struct {
	Total     float64            `json:"total"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// CalculateOverageCharges prices the organization's usage beyond its plan
// limits. Unlimited dimensions never accrue overage.
func (g *Gate) CalculateOverageCharges(planID string, usage Usage) (*OverageCharges, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return nil, err
	}

	charges := &OverageCharges{Breakdown: make(map[string]float64)}

	if over := overage(usage.Documents, limits.MaxDocuments); over > 0 {
		charges.Breakdown["documents"] = roundCents(float64(over) * DocumentOverageRate)
	}
	if over := overage(usage.Tokens, limits.MaxTokensPerMonth); over > 0 {
		charges.Breakdown["tokens"] = roundCents(float64(over) / 1000 * TokenOverageRatePerK)
	}
	if over := overage(usage.Users, limits.MaxUsers); over > 0 {
		charges.Breakdown["users"] = roundCents(float64(over) * UserOverageRate)
	}

	for _, amount := range charges.Breakdown {
		charges.Total += amount
	}
	charges.Total = roundCents(charges.Total)
	return charges, nil
}

func overage(used int64, limit billing.Limit) int64 {
	if limit.IsUnlimited() || used <= limit.Int64() {
		return 0
	}
	return used - limit.Int64()
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
