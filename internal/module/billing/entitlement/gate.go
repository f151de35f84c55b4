// Package entitlement decides whether an organization, under its current
// plan and usage, may perform a given operation. Every method is a pure
// function of (plan id, usage snapshot, arguments) resolved through the
// plan catalog; the package keeps no state of its own and is safe for
// concurrent use.
package entitlement

import (
	"fmt"

	"github.com/ragpdf/server/internal/module/billing"
)

// Usage is a caller-supplied snapshot of an organization's consumption
// counters at check time. The gate never persists or mutates it.
type Usage struct {
	Documents int64 `json:"documents_count"`
	Tokens    int64 `json:"tokens_used"`
	Users     int64 `json:"users_count"`
	APICalls  int64 `json:"api_calls"`
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed         bool           `json:"allowed"`
	Reason          string         `json:"reason,omitempty"`
	Limits          billing.Limits `json:"limits"`
	UpgradeRequired bool           `json:"upgrade_required"`
}

// Gate enforces per-plan usage ceilings and feature flags.
type Gate struct {
	catalog *billing.Catalog
}

// NewGate creates a gate backed by the given catalog.
func NewGate(catalog *billing.Catalog) *Gate {
	return &Gate{catalog: catalog}
}

func (g *Gate) limits(planID string) (billing.Limits, error) {
	plan, err := g.catalog.GetPlan(planID)
	if err != nil {
		return billing.Limits{}, err
	}
	return plan.Limits, nil
}

func allow(limits billing.Limits) Decision {
	return Decision{Allowed: true, Limits: limits}
}

func deny(limits billing.Limits, reason string) Decision {
	return Decision{Reason: reason, Limits: limits, UpgradeRequired: true}
}

// CheckDocumentUpload checks the document count ceiling and the per-file
// size limit. The count check denies once usage has reached the limit;
// the size check has no unlimited sentinel.
func (g *Gate) CheckDocumentUpload(planID string, usage Usage, fileSizeMB int64) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !limits.MaxDocuments.IsUnlimited() && usage.Documents >= limits.MaxDocuments.Int64() {
		return deny(limits, fmt.Sprintf(
			"document limit reached (%d of %d documents used)",
			usage.Documents, limits.MaxDocuments)), nil
	}
	if fileSizeMB > limits.MaxFileSizeMB {
		return deny(limits, fmt.Sprintf(
			"file size %dMB exceeds the %dMB per-file limit",
			fileSizeMB, limits.MaxFileSizeMB)), nil
	}
	return allow(limits), nil
}

// CheckUserCreation checks the seat ceiling.
func (g *Gate) CheckUserCreation(planID string, usage Usage) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !limits.MaxUsers.IsUnlimited() && usage.Users >= limits.MaxUsers.Int64() {
		return deny(limits, fmt.Sprintf(
			"user limit reached (%d of %d seats used)",
			usage.Users, limits.MaxUsers)), nil
	}
	return allow(limits), nil
}

// CheckTokenUsage projects the spend forward and denies only when the
// projected total would exceed the monthly cap. Unlike the count checks,
// spending up to exactly the cap is allowed.
func (g *Gate) CheckTokenUsage(planID string, usage Usage, requested int64) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !limits.MaxTokensPerMonth.IsUnlimited() && usage.Tokens+requested > limits.MaxTokensPerMonth.Int64() {
		return deny(limits, fmt.Sprintf(
			"monthly token limit exceeded (%d used + %d requested > %d allowed)",
			usage.Tokens, requested, limits.MaxTokensPerMonth)), nil
	}
	return allow(limits), nil
}

// CheckThreadCreation checks the per-project thread ceiling. The count is
// per-project and supplied by the caller.
func (g *Gate) CheckThreadCreation(planID string, currentThreads int64) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !limits.MaxThreadsPerProject.IsUnlimited() && currentThreads >= limits.MaxThreadsPerProject.Int64() {
		return deny(limits, fmt.Sprintf(
			"thread limit reached for this project (%d of %d)",
			currentThreads, limits.MaxThreadsPerProject)), nil
	}
	return allow(limits), nil
}

// CheckMessageCreation checks the per-thread message ceiling. The count
// is per-thread and supplied by the caller.
func (g *Gate) CheckMessageCreation(planID string, currentMessages int64) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !limits.MaxMessagesPerThread.IsUnlimited() && currentMessages >= limits.MaxMessagesPerThread.Int64() {
		return deny(limits, fmt.Sprintf(
			"message limit reached for this thread (%d of %d)",
			currentMessages, limits.MaxMessagesPerThread)), nil
	}
	return allow(limits), nil
}

// CheckConcurrentUploads checks the in-flight upload ceiling. This field
// has no unlimited sentinel.
func (g *Gate) CheckConcurrentUploads(planID string, currentUploads int) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if currentUploads >= limits.MaxConcurrentUploads {
		return deny(limits, fmt.Sprintf(
			"too many concurrent uploads (%d of %d in progress)",
			currentUploads, limits.MaxConcurrentUploads)), nil
	}
	return allow(limits), nil
}

// CheckRetention checks whether a document of the given age is still
// inside the plan's history retention window.
func (g *Gate) CheckRetention(planID string, documentAgeDays int64) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !limits.MaxHistoryRetentionDays.IsUnlimited() && documentAgeDays > limits.MaxHistoryRetentionDays.Int64() {
		return deny(limits, fmt.Sprintf(
			"document age %d days exceeds the %d day retention window",
			documentAgeDays, limits.MaxHistoryRetentionDays)), nil
	}
	return allow(limits), nil
}

// CheckSlackIntegration checks the Slack feature flag.
func (g *Gate) CheckSlackIntegration(planID string) (Decision, error) {
	return g.checkFeature(planID, "Slack integration", func(l billing.Limits) bool { return l.SlackIntegration })
}

// CheckAPIAccess checks the API access feature flag.
func (g *Gate) CheckAPIAccess(planID string) (Decision, error) {
	return g.checkFeature(planID, "API access", func(l billing.Limits) bool { return l.APIAccess })
}

// CheckPrioritySupport checks the priority support feature flag.
func (g *Gate) CheckPrioritySupport(planID string) (Decision, error) {
	return g.checkFeature(planID, "Priority support", func(l billing.Limits) bool { return l.PrioritySupport })
}

// CheckCustomBranding checks the custom branding feature flag.
func (g *Gate) CheckCustomBranding(planID string) (Decision, error) {
	return g.checkFeature(planID, "Custom branding", func(l billing.Limits) bool { return l.CustomBranding })
}

func (g *Gate) checkFeature(planID, feature string, enabled func(billing.Limits) bool) (Decision, error) {
	limits, err := g.limits(planID)
	if err != nil {
		return Decision{}, err
	}
	if !enabled(limits) {
		return deny(limits, fmt.Sprintf("%s is not included in the %s plan", feature, planID)), nil
	}
	return allow(limits), nil
}

// --- Enforce variants ---
//
// Each enforce method runs its check and converts a denial into a
// DeniedError. There are no other side effects.

func enforce(d Decision, err error) error {
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &DeniedError{Reason: d.Reason, UpgradeRequired: d.UpgradeRequired}
	}
	return nil
}

// EnforceDocumentUpload raises a DeniedError when the upload is not permitted.
func (g *Gate) EnforceDocumentUpload(planID string, usage Usage, fileSizeMB int64) error {
	return enforce(g.CheckDocumentUpload(planID, usage, fileSizeMB))
}

// EnforceUserCreation raises a DeniedError when the seat cannot be added.
func (g *Gate) EnforceUserCreation(planID string, usage Usage) error {
	return enforce(g.CheckUserCreation(planID, usage))
}

// EnforceTokenUsage raises a DeniedError when the spend would exceed the cap.
func (g *Gate) EnforceTokenUsage(planID string, usage Usage, requested int64) error {
	return enforce(g.CheckTokenUsage(planID, usage, requested))
}

// EnforceThreadCreation raises a DeniedError when the project is at its thread cap.
func (g *Gate) EnforceThreadCreation(planID string, currentThreads int64) error {
	return enforce(g.CheckThreadCreation(planID, currentThreads))
}

// EnforceMessageCreation raises a DeniedError when the thread is at its message cap.
func (g *Gate) EnforceMessageCreation(planID string, currentMessages int64) error {
	return enforce(g.CheckMessageCreation(planID, currentMessages))
}

// EnforceConcurrentUploads raises a DeniedError when too many uploads are in flight.
func (g *Gate) EnforceConcurrentUploads(planID string, currentUploads int) error {
	return enforce(g.CheckConcurrentUploads(planID, currentUploads))
}

// EnforceRetention raises a DeniedError when the document is outside the window.
func (g *Gate) EnforceRetention(planID string, documentAgeDays int64) error {
	return enforce(g.CheckRetention(planID, documentAgeDays))
}

// EnforceSlackIntegration raises a DeniedError when the plan lacks Slack.
func (g *Gate) EnforceSlackIntegration(planID string) error {
	return enforce(g.CheckSlackIntegration(planID))
}

// EnforceAPIAccess raises a DeniedError when the plan lacks API access.
func (g *Gate) EnforceAPIAccess(planID string) error {
	return enforce(g.CheckAPIAccess(planID))
}

// EnforcePrioritySupport raises a DeniedError when the plan lacks priority support.
func (g *Gate) EnforcePrioritySupport(planID string) error {
	return enforce(g.CheckPrioritySupport(planID))
}

// EnforceCustomBranding raises a DeniedError when the plan lacks custom branding.
func (g *Gate) EnforceCustomBranding(planID string) error {
	return enforce(g.CheckCustomBranding(planID))
}
