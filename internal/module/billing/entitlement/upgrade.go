package entitlement

import (
	"fmt"

	"github.com/ragpdf/server/internal/module/billing"
)

// usageThresholdPercent is the point at which a dimension is flagged as
// approaching its limit.
const usageThresholdPercent = 80.0

// UpgradeRecommendation is advisory guidance for an organization running
// close to (or past) its plan limits.
type UpgradeRecommendation struct {
	RecommendedPlan string             `json:"recommended_plan,omitempty"`
	Reasons         []string           `json:"reasons"`
	CurrentLimits   billing.Limits     `json:"current_plan_limits"`
	UsagePercent    map[string]float64 `json:"usage_percentage"`
}

// UpgradeRecommendations computes per-dimension usage percentages, flags
// dimensions over the threshold, and recommends the first catalog plan
// (excluding the current one) whose limits fit current usage. First fit,
// not cheapest fit: the catalog is ordered free to enterprise.
func (g *Gate) UpgradeRecommendations(planID string, usage Usage) (*UpgradeRecommendation, error) {
	current, err := g.catalog.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	rec := &UpgradeRecommendation{
		Reasons:       []string{},
		CurrentLimits: current.Limits,
		UsagePercent:  make(map[string]float64),
	}

	for _, dim := range dimensions(current.Limits, usage) {
		if dim.limit.IsUnlimited() || dim.limit.Int64() == 0 {
			continue
		}
		pct := float64(dim.used) / float64(dim.limit.Int64()) * 100
		rec.UsagePercent[dim.name] = pct
		if pct > usageThresholdPercent {
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("%s usage at %.0f%% of limit", dim.name, pct))
		}
	}

	for _, plan := range g.catalog.ListPlans() {
		if plan.ID == planID {
			continue
		}
		if fits(plan.Limits, usage) {
			rec.RecommendedPlan = plan.ID
			break
		}
	}

	return rec, nil
}

type dimension struct {
	name  string
	used  int64
	limit billing.Limit
}

func dimensions(limits billing.Limits, usage Usage) []dimension {
	return []dimension{
		{"documents", usage.Documents, limits.MaxDocuments},
		{"tokens", usage.Tokens, limits.MaxTokensPerMonth},
		{"users", usage.Users, limits.MaxUsers},
	}
}

// fits reports whether every capped dimension of limits accommodates the
// current usage.
func fits(limits billing.Limits, usage Usage) bool {
	for _, dim := range dimensions(limits, usage) {
		if dim.limit.IsUnlimited() {
			continue
		}
		if dim.limit.Int64() < dim.used {
			return false
		}
	}
	return true
}
