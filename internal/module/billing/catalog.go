package billing

// Catalog holds the fixed list of plans. It is built once at startup and
// read concurrently without locking; nothing mutates it afterward.
type Catalog struct {
	plans []*Plan
	byID  map[string]*Plan
}

// NewCatalog creates the default plan catalog.
func NewCatalog() *Catalog {
	return newCatalog(defaultPlans())
}

// NewCatalogWithPrices creates the default catalog with Stripe price IDs
// attached per plan. Unknown plan IDs in the map are ignored.
func NewCatalogWithPrices(priceIDs map[string]string) *Catalog {
	plans := defaultPlans()
	for _, p := range plans {
		if id, ok := priceIDs[p.ID]; ok {
			p.StripePriceID = id
		}
	}
	return newCatalog(plans)
}

func newCatalog(plans []*Plan) *Catalog {
	byID := make(map[string]*Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}
	return &Catalog{plans: plans, byID: byID}
}

// ListPlans returns all plans in catalog order (free first).
func (c *Catalog) ListPlans() []*Plan {
	out := make([]*Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// GetPlan returns the plan matching id. An unknown id means an
// organization references a plan that no longer exists, which is a
// configuration error, not user input.
func (c *Catalog) GetPlan(id string) (*Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return p, nil
}

// defaultPlans returns the catalog contents. Limits are declared in one
// place rather than spread across per-field switch statements.
func defaultPlans() []*Plan {
	return []*Plan{
		{
			ID:          PlanFree,
			Name:        "Free",
			Description: "Try RAG PDF Q&A on a handful of documents",
			PriceUSD:    0,
			Limits: Limits{
				MaxDocuments:            5,
				MaxTokensPerMonth:       50_000,
				MaxUsers:                2,
				MaxFileSizeMB:           10,
				MaxConcurrentUploads:    1,
				MaxThreadsPerProject:    5,
				MaxMessagesPerThread:    50,
				MaxHistoryRetentionDays: 30,
			},
			Features:     []string{"5 documents", "50K tokens/month", "30 day history"},
			DisplayOrder: 0,
		},
		{
			ID:          PlanStarter,
			Name:        "Starter",
			Description: "For small teams getting answers out of their PDFs",
			PriceUSD:    1900,
			Limits: Limits{
				MaxDocuments:            50,
				MaxTokensPerMonth:       500_000,
				MaxUsers:                5,
				MaxFileSizeMB:           25,
				MaxConcurrentUploads:    3,
				MaxThreadsPerProject:    25,
				MaxMessagesPerThread:    200,
				MaxHistoryRetentionDays: 90,
			},
			Features:     []string{"50 documents", "500K tokens/month", "90 day history"},
			DisplayOrder: 1,
		},
		{
			ID:          PlanProfessional,
			Name:        "Professional",
			Description: "Slack and API access for growing organizations",
			PriceUSD:    9900,
			Limits: Limits{
				MaxDocuments:            500,
				MaxTokensPerMonth:       2_000_000,
				MaxUsers:                20,
				MaxFileSizeMB:           50,
				MaxConcurrentUploads:    5,
				MaxThreadsPerProject:    100,
				MaxMessagesPerThread:    500,
				MaxHistoryRetentionDays: 365,
				SlackIntegration:        true,
				APIAccess:               true,
			},
			Features: []string{
				"500 documents", "2M tokens/month", "1 year history",
				"Slack integration", "API access",
			},
			DisplayOrder: 2,
		},
		{
			ID:          PlanEnterprise,
			Name:        "Enterprise",
			Description: "Unlimited usage with priority support",
			PriceUSD:    49900,
			Limits: Limits{
				MaxDocuments:            Unlimited,
				MaxTokensPerMonth:       Unlimited,
				MaxUsers:                Unlimited,
				MaxFileSizeMB:           100,
				MaxConcurrentUploads:    10,
				MaxThreadsPerProject:    Unlimited,
				MaxMessagesPerThread:    Unlimited,
				MaxHistoryRetentionDays: Unlimited,
				SlackIntegration:        true,
				APIAccess:               true,
				PrioritySupport:         true,
				CustomBranding:          true,
			},
			Features: []string{
				"Unlimited documents", "Unlimited tokens", "Unlimited history",
				"Slack integration", "API access", "Priority support", "Custom branding",
			},
			DisplayOrder: 3,
		},
	}
}
