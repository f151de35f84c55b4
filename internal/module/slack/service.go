package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
)

// OAuth state entries expire if the install is not completed in time.
const stateTTL = 10 * time.Minute

// PlanResolver resolves the effective plan of an organization.
type PlanResolver interface {
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
}

// Notifier posts messages to a connected workspace.
type Notifier interface {
	PostMessage(ctx context.Context, accessToken, channel, text string) error
}

type statePayload struct {
	OrgID  uuid.UUID `json:"org_id"`
	UserID uuid.UUID `json:"user_id"`
}

// Service implements the Slack integration. Installing and notifying
// are gated on the plan's Slack feature flag.
type Service struct {
	repo     Repository
	plans    PlanResolver
	gate     *entitlement.Gate
	oauth    *OAuthProvider
	notifier Notifier
	redis    redis.UniversalClient
	logger   *zap.Logger
}

// NewService creates a new Slack service.
func NewService(
	repo Repository,
	plans PlanResolver,
	gate *entitlement.Gate,
	oauth *OAuthProvider,
	notifier Notifier,
	rdb redis.UniversalClient,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		plans:    plans,
		gate:     gate,
		oauth:    oauth,
		notifier: notifier,
		redis:    rdb,
		logger:   logger,
	}
}

func stateKey(state string) string {
	return "slack:oauth:state:" + state
}

// BeginInstall checks the plan's Slack entitlement and returns the
// authorization URL to send the user to.
func (s *Service) BeginInstall(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return "", err
	}
	if err := s.gate.EnforceSlackIntegration(planID); err != nil {
		return "", err
	}

	state := uuid.NewString()
	payload, err := json.Marshal(statePayload{OrgID: orgID, UserID: userID})
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, stateKey(state), payload, stateTTL).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return s.oauth.AuthorizeURL(state), nil
}

// CompleteInstall consumes the state token, exchanges the code, and
// stores the workspace installation. Each state is usable once.
func (s *Service) CompleteInstall(ctx context.Context, state, code string) (*Installation, error) {
	raw, err := s.redis.GetDel(ctx, stateKey(state)).Bytes()
	if err == redis.Nil {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrInvalidState
	}

	result, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	inst := &Installation{
		ID:          uuid.New(),
		OrgID:       payload.OrgID,
		TeamID:      result.TeamID,
		TeamName:    result.TeamName,
		AccessToken: result.AccessToken,
		Scopes:      result.Scopes,
		InstalledBy: payload.UserID,
	}
	if err := s.repo.Upsert(ctx, inst); err != nil {
		return nil, err
	}

	s.logger.Info("slack installed",
		zap.String("org_id", payload.OrgID.String()),
		zap.String("team_id", result.TeamID),
	)
	return inst, nil
}

// GetInstallation returns the organization's Slack installation.
func (s *Service) GetInstallation(ctx context.Context, orgID uuid.UUID) (*Installation, error) {
	return s.repo.GetByOrg(ctx, orgID)
}

// Uninstall removes the organization's Slack installation.
func (s *Service) Uninstall(ctx context.Context, orgID uuid.UUID) error {
	return s.repo.Delete(ctx, orgID)
}

// Notify posts a message to the connected workspace. The entitlement is
// rechecked so a downgraded plan stops notifying.
func (s *Service) Notify(ctx context.Context, orgID uuid.UUID, req *NotifyRequest) error {
	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return err
	}
	if err := s.gate.EnforceSlackIntegration(planID); err != nil {
		return err
	}

	inst, err := s.repo.GetByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	return s.notifier.PostMessage(ctx, inst.AccessToken, req.Channel, req.Text)
}
