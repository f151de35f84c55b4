package org

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing"
	"github.com/ragpdf/server/internal/module/billing/entitlement"
)

type fakeRepo struct {
	orgs    map[uuid.UUID]*Organization
	members map[uuid.UUID][]*Membership
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orgs:    make(map[uuid.UUID]*Organization),
		members: make(map[uuid.UUID][]*Membership),
	}
}

func (r *fakeRepo) Create(_ context.Context, o *Organization) error {
	for _, existing := range r.orgs {
		if existing.Slug == o.Slug {
			return ErrSlugTaken
		}
	}
	r.orgs[o.ID] = o
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Organization, error) {
	o, ok := r.orgs[id]
	if !ok {
		return nil, ErrOrgNotFound
	}
	return o, nil
}

func (r *fakeRepo) GetBySlug(_ context.Context, slug string) (*Organization, error) {
	for _, o := range r.orgs {
		if o.Slug == slug {
			return o, nil
		}
	}
	return nil, ErrOrgNotFound
}

func (r *fakeRepo) Update(_ context.Context, o *Organization) error {
	r.orgs[o.ID] = o
	return nil
}

func (r *fakeRepo) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(r.orgs))
	for id := range r.orgs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeRepo) AddMember(_ context.Context, m *Membership) error {
	r.members[m.OrgID] = append(r.members[m.OrgID], m)
	return nil
}

func (r *fakeRepo) RemoveMember(_ context.Context, orgID, userID uuid.UUID) error {
	list := r.members[orgID]
	for i, m := range list {
		if m.UserID == userID {
			r.members[orgID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

func (r *fakeRepo) ListMembers(_ context.Context, orgID uuid.UUID) ([]*Membership, error) {
	return r.members[orgID], nil
}

func (r *fakeRepo) CountMembers(_ context.Context, orgID uuid.UUID) (int64, error) {
	return int64(len(r.members[orgID])), nil
}

func (r *fakeRepo) MemberExists(_ context.Context, orgID, userID uuid.UUID) (bool, error) {
	for _, m := range r.members[orgID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type stubPlans struct {
	planID string
}

func (s *stubPlans) PlanFor(_ context.Context, _ uuid.UUID) (string, error) {
	return s.planID, nil
}

func newTestService(planID string) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	gate := entitlement.NewGate(billing.NewCatalog())
	svc := NewService(repo, &stubPlans{planID: planID}, gate, zap.NewNop())
	return svc, repo
}

func TestCreateMakesOwnerMembership(t *testing.T) {
	svc, repo := newTestService(billing.PlanFree)
	ownerID := uuid.New()

	o, err := svc.Create(context.Background(), ownerID, "owner@example.com", &CreateOrgRequest{
		Name: "Acme", Slug: "acme",
	})
	require.NoError(t, err)

	members, err := repo.ListMembers(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, ownerID, members[0].UserID)
	assert.Equal(t, RoleOwner, members[0].Role)
}

func TestCreateDuplicateSlug(t *testing.T) {
	svc, _ := newTestService(billing.PlanFree)

	_, err := svc.Create(context.Background(), uuid.New(), "a@example.com", &CreateOrgRequest{
		Name: "Acme", Slug: "acme",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), uuid.New(), "b@example.com", &CreateOrgRequest{
		Name: "Acme Two", Slug: "acme",
	})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestAddMemberBelowSeatLimit(t *testing.T) {
	svc, _ := newTestService(billing.PlanStarter)
	orgID := uuid.New()

	m, err := svc.AddMember(context.Background(), orgID, &AddMemberRequest{
		UserID: uuid.New(),
		Email:  "new@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleMember, m.Role)
}

func TestAddMemberDeniedAtSeatLimit(t *testing.T) {
	// The free plan allows 2 seats.
	svc, repo := newTestService(billing.PlanFree)
	orgID := uuid.New()
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.AddMember(context.Background(), &Membership{
			ID: uuid.New(), OrgID: orgID, UserID: uuid.New(), Role: RoleMember,
		}))
	}

	_, err := svc.AddMember(context.Background(), orgID, &AddMemberRequest{
		UserID: uuid.New(),
		Email:  "third@example.com",
	})
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.True(t, denied.UpgradeRequired)
}

func TestAddMemberAlreadyExists(t *testing.T) {
	svc, repo := newTestService(billing.PlanStarter)
	orgID := uuid.New()
	userID := uuid.New()
	require.NoError(t, repo.AddMember(context.Background(), &Membership{
		ID: uuid.New(), OrgID: orgID, UserID: userID, Role: RoleMember,
	}))

	_, err := svc.AddMember(context.Background(), orgID, &AddMemberRequest{
		UserID: userID,
		Email:  "dup@example.com",
	})
	assert.ErrorIs(t, err, ErrMemberExists)
}

func TestAddMemberExplicitRole(t *testing.T) {
	svc, _ := newTestService(billing.PlanProfessional)

	m, err := svc.AddMember(context.Background(), uuid.New(), &AddMemberRequest{
		UserID: uuid.New(),
		Email:  "admin@example.com",
		Role:   RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, m.Role)
}

func TestRemoveMemberNotFound(t *testing.T) {
	svc, _ := newTestService(billing.PlanFree)

	err := svc.RemoveMember(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
