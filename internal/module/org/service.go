package org

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
)

// PlanResolver resolves the effective plan of an organization.
type PlanResolver interface {
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
}

// Service implements organization operations. Adding a member is gated
// on the plan's seat limit.
type Service struct {
	repo   Repository
	plans  PlanResolver
	gate   *entitlement.Gate
	logger *zap.Logger
}

// NewService creates a new organization service.
func NewService(repo Repository, plans PlanResolver, gate *entitlement.Gate, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		plans:  plans,
		gate:   gate,
		logger: logger,
	}
}

// Create creates an organization and makes the creator its owner. New
// organizations start on the free plan; no subscription row is needed.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, email string, req *CreateOrgRequest) (*Organization, error) {
	o := &Organization{
		ID:   uuid.New(),
		Name: req.Name,
		Slug: req.Slug,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	owner := &Membership{
		ID:     uuid.New(),
		OrgID:  o.ID,
		UserID: userID,
		Email:  email,
		Role:   RoleOwner,
	}
	if err := s.repo.AddMember(ctx, owner); err != nil {
		return nil, fmt.Errorf("add owner: %w", err)
	}

	s.logger.Info("organization created",
		zap.String("org_id", o.ID.String()),
		zap.String("slug", o.Slug),
	)
	return o, nil
}

// Get returns an organization by id.
func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	return s.repo.GetByID(ctx, orgID)
}

// AddMember adds a member to the organization after checking the seat
// limit of the organization's plan.
func (s *Service) AddMember(ctx context.Context, orgID uuid.UUID, req *AddMemberRequest) (*Membership, error) {
	exists, err := s.repo.MemberExists(ctx, orgID, req.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrMemberExists
	}

	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	seats, err := s.repo.CountMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.EnforceUserCreation(planID, entitlement.Usage{Users: seats}); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RoleMember
	}
	m := &Membership{
		ID:     uuid.New(),
		OrgID:  orgID,
		UserID: req.UserID,
		Email:  req.Email,
		Role:   role,
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("member added",
		zap.String("org_id", orgID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("role", string(role)),
	)
	return m, nil
}

// RemoveMember removes a member from the organization.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	return s.repo.RemoveMember(ctx, orgID, userID)
}

// ListMembers lists the organization's members.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Membership, error) {
	return s.repo.ListMembers(ctx, orgID)
}
