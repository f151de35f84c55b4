package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
)

// DocumentCounter reports how many documents an organization has.
// Implemented by the document repository.
type DocumentCounter interface {
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// MemberCounter reports how many members an organization has.
// Implemented by the org repository.
type MemberCounter interface {
	CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// Source assembles the usage snapshot entitlement checks run against.
// Token counts come from Redis with the records table as fallback;
// document and member counts come from their owning modules.
type Source struct {
	counters *Counters
	repo     Repository
	docs     DocumentCounter
	members  MemberCounter
	logger   *zap.Logger
}

// NewSource creates a usage source.
func NewSource(counters *Counters, repo Repository, docs DocumentCounter, members MemberCounter, logger *zap.Logger) *Source {
	return &Source{
		counters: counters,
		repo:     repo,
		docs:     docs,
		members:  members,
		logger:   logger,
	}
}

// Snapshot returns the organization's current usage counters.
func (s *Source) Snapshot(ctx context.Context, orgID uuid.UUID) (entitlement.Usage, error) {
	var snap entitlement.Usage

	tokens, err := s.counters.TokensUsed(ctx, orgID)
	if err != nil {
		s.logger.Warn("redis token counter unavailable, falling back to records",
			zap.Error(err),
			zap.String("org_id", orgID.String()),
		)
		now := time.Now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		tokens, err = s.repo.GetMonthlyTokens(ctx, orgID, monthStart)
		if err != nil {
			return snap, err
		}
	}
	snap.Tokens = tokens

	docs, err := s.docs.CountByOrg(ctx, orgID)
	if err != nil {
		return snap, err
	}
	snap.Documents = docs

	members, err := s.members.CountMembers(ctx, orgID)
	if err != nil {
		return snap, err
	}
	snap.Users = members

	// API calls are informational only; no check denies on them.
	if calls, err := s.counters.APICallsUsed(ctx, orgID); err == nil {
		snap.APICalls = calls
	}

	return snap, nil
}
