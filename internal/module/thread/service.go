package thread

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/module/usage"
	"github.com/ragpdf/server/internal/utils/metrics"
	"github.com/ragpdf/server/internal/utils/pagination"
)

// Tokens reserved for an answer when the caller gives no bound.
const defaultTokenReserve = 1000

// PlanResolver resolves the effective plan of an organization.
type PlanResolver interface {
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
}

// TokenReader reads the organization's token spend this period.
type TokenReader interface {
	TokensUsed(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// Service implements thread operations. Thread and message creation are
// gated on per-project and per-thread counts; posting a question also
// projects the reserved token spend against the monthly cap.
type Service struct {
	repo     Repository
	plans    PlanResolver
	gate     *entitlement.Gate
	tokens   TokenReader
	recorder *usage.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a new thread service.
func NewService(
	repo Repository,
	plans PlanResolver,
	gate *entitlement.Gate,
	tokens TokenReader,
	recorder *usage.Recorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		plans:    plans,
		gate:     gate,
		tokens:   tokens,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// CreateThread creates a thread in a project.
func (s *Service) CreateThread(ctx context.Context, orgID, creatorID uuid.UUID, req *CreateThreadRequest) (*Thread, error) {
	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.EnforceThreadCreation(planID, count); err != nil {
		return nil, err
	}

	t := &Thread{
		ID:        uuid.New(),
		OrgID:     orgID,
		ProjectID: req.ProjectID,
		CreatorID: creatorID,
		Title:     req.Title,
	}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("thread created",
		zap.String("org_id", orgID.String()),
		zap.String("thread_id", t.ID.String()),
		zap.String("project_id", req.ProjectID.String()),
	)
	return t, nil
}

// GetThread returns a thread by id.
func (s *Service) GetThread(ctx context.Context, orgID, id uuid.UUID) (*Thread, error) {
	return s.repo.GetThread(ctx, orgID, id)
}

// ListThreads returns a page of threads, optionally scoped to a project.
func (s *Service) ListThreads(ctx context.Context, orgID, projectID uuid.UUID, p *pagination.Pagination) ([]*Thread, int64, error) {
	return s.repo.ListThreads(ctx, orgID, projectID, p)
}

// ListMessages returns a thread's messages oldest first.
func (s *Service) ListMessages(ctx context.Context, orgID, threadID uuid.UUID) ([]*Message, error) {
	if _, err := s.repo.GetThread(ctx, orgID, threadID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, threadID)
}

// PostMessage adds a user question to a thread. The message count check
// runs against the thread's current length, and the token check projects
// the reserved answer spend against what the organization has used this
// month. The spend itself is recorded when the answer lands.
func (s *Service) PostMessage(ctx context.Context, orgID, authorID, threadID uuid.UUID, req *PostMessageRequest) (*Message, error) {
	if _, err := s.repo.GetThread(ctx, orgID, threadID); err != nil {
		return nil, err
	}

	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.EnforceMessageCreation(planID, count); err != nil {
		return nil, err
	}

	used, err := s.tokens.TokensUsed(ctx, orgID)
	if err != nil {
		return nil, err
	}
	reserve := req.MaxTokens
	if reserve <= 0 {
		reserve = defaultTokenReserve
	}
	if err := s.gate.EnforceTokenUsage(planID, entitlement.Usage{Tokens: used}, reserve); err != nil {
		return nil, err
	}

	m := &Message{
		ID:       uuid.New(),
		ThreadID: threadID,
		OrgID:    orgID,
		AuthorID: authorID,
		Role:     RoleUser,
		Content:  req.Content,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	s.recorder.RecordEvent(&usage.Record{
		OrgID:     orgID,
		UserID:    authorID,
		Kind:      usage.KindMessage,
		Timestamp: time.Now().UTC(),
	})
	s.recorder.RecordAPICall(ctx, &usage.Record{
		OrgID:  orgID,
		UserID: authorID,
	})
	return m, nil
}

// AppendAnswer records an assistant answer and its actual token spend.
// The spend was reserved when the question was posted, so the answer is
// accepted even if it lands after the cap.
func (s *Service) AppendAnswer(ctx context.Context, orgID, threadID uuid.UUID, in *AssistantMessageInput) (*Message, error) {
	if _, err := s.repo.GetThread(ctx, orgID, threadID); err != nil {
		return nil, err
	}

	m := &Message{
		ID:        uuid.New(),
		ThreadID:  threadID,
		OrgID:     orgID,
		Role:      RoleAssistant,
		Content:   in.Content,
		Citations: in.Citations,
		Tokens:    in.Tokens,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	if in.Tokens > 0 {
		s.recorder.RecordTokens(ctx, &usage.Record{
			OrgID:     orgID,
			Tokens:    in.Tokens,
			Timestamp: time.Now().UTC(),
		})
		if planID, err := s.plans.PlanFor(ctx, orgID); err == nil {
			s.metrics.RecordTokens(planID, in.Tokens)
		}
	}
	return m, nil
}
