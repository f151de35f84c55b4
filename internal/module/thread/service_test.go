package thread

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing"
	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/module/usage"
	"github.com/ragpdf/server/internal/utils/metrics"
	"github.com/ragpdf/server/internal/utils/pagination"
)

type fakeThreadRepo struct {
	mu       sync.Mutex
	threads  map[uuid.UUID]*Thread
	messages map[uuid.UUID][]*Message
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{
		threads:  make(map[uuid.UUID]*Thread),
		messages: make(map[uuid.UUID][]*Message),
	}
}

func (r *fakeThreadRepo) CreateThread(_ context.Context, t *Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[t.ID] = t
	return nil
}

func (r *fakeThreadRepo) GetThread(_ context.Context, orgID, id uuid.UUID) (*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok || t.OrgID != orgID {
		return nil, ErrThreadNotFound
	}
	return t, nil
}

func (r *fakeThreadRepo) ListThreads(_ context.Context, orgID, projectID uuid.UUID, _ *pagination.Pagination) ([]*Thread, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var threads []*Thread
	for _, t := range r.threads {
		if t.OrgID != orgID {
			continue
		}
		if projectID != uuid.Nil && t.ProjectID != projectID {
			continue
		}
		threads = append(threads, t)
	}
	return threads, int64(len(threads)), nil
}

func (r *fakeThreadRepo) CountByProject(_ context.Context, projectID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, t := range r.threads {
		if t.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (r *fakeThreadRepo) CreateMessage(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ThreadID] = append(r.messages[m.ThreadID], m)
	return nil
}

func (r *fakeThreadRepo) ListMessages(_ context.Context, threadID uuid.UUID) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[threadID], nil
}

func (r *fakeThreadRepo) CountByThread(_ context.Context, threadID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.messages[threadID])), nil
}

type stubPlans struct {
	planID string
}

func (s *stubPlans) PlanFor(_ context.Context, _ uuid.UUID) (string, error) {
	return s.planID, nil
}

type nullUsageRepo struct{}

func (nullUsageRepo) CreateRecord(_ context.Context, _ *usage.Record) error { return nil }
func (nullUsageRepo) GetMonthlyTokens(_ context.Context, _ uuid.UUID, _ time.Time) (int64, error) {
	return 0, nil
}
func (nullUsageRepo) GetStats(_ context.Context, _ uuid.UUID, _, _ time.Time) (*usage.Stats, error) {
	return &usage.Stats{}, nil
}

type threadFixture struct {
	service  *Service
	repo     *fakeThreadRepo
	counters *usage.Counters
}

func newThreadFixture(t *testing.T, planID string) *threadFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newFakeThreadRepo()
	gate := entitlement.NewGate(billing.NewCatalog())
	counters := usage.NewCounters(rdb)
	recorder := usage.NewRecorder(nullUsageRepo{}, counters, zap.NewNop(), 16)
	t.Cleanup(recorder.Close)
	m := metrics.NewWith(prometheus.NewRegistry(), "test")

	svc := NewService(repo, &stubPlans{planID: planID}, gate, counters, recorder, m, zap.NewNop())
	return &threadFixture{service: svc, repo: repo, counters: counters}
}

func seedThread(t *testing.T, f *threadFixture, orgID, projectID uuid.UUID) *Thread {
	t.Helper()
	th := &Thread{ID: uuid.New(), OrgID: orgID, ProjectID: projectID, Title: "seed"}
	require.NoError(t, f.repo.CreateThread(context.Background(), th))
	return th
}

func TestCreateThread(t *testing.T) {
	f := newThreadFixture(t, billing.PlanFree)
	orgID := uuid.New()

	th, err := f.service.CreateThread(context.Background(), orgID, uuid.New(), &CreateThreadRequest{
		ProjectID: uuid.New(),
		Title:     "Q3 contract questions",
	})
	require.NoError(t, err)
	assert.Equal(t, orgID, th.OrgID)
}

func TestCreateThreadDeniedAtProjectLimit(t *testing.T) {
	// The free plan allows 5 threads per project.
	f := newThreadFixture(t, billing.PlanFree)
	orgID := uuid.New()
	projectID := uuid.New()
	for i := 0; i < 5; i++ {
		seedThread(t, f, orgID, projectID)
	}

	_, err := f.service.CreateThread(context.Background(), orgID, uuid.New(), &CreateThreadRequest{
		ProjectID: projectID,
		Title:     "one too many",
	})
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.Contains(t, denied.Reason, "thread limit")
}

func TestCreateThreadOtherProjectUnaffected(t *testing.T) {
	f := newThreadFixture(t, billing.PlanFree)
	orgID := uuid.New()
	fullProject := uuid.New()
	for i := 0; i < 5; i++ {
		seedThread(t, f, orgID, fullProject)
	}

	_, err := f.service.CreateThread(context.Background(), orgID, uuid.New(), &CreateThreadRequest{
		ProjectID: uuid.New(),
		Title:     "fresh project",
	})
	require.NoError(t, err)
}

func TestPostMessage(t *testing.T) {
	f := newThreadFixture(t, billing.PlanFree)
	orgID := uuid.New()
	th := seedThread(t, f, orgID, uuid.New())

	m, err := f.service.PostMessage(context.Background(), orgID, uuid.New(), th.ID, &PostMessageRequest{
		Content: "What does clause 4 say?",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, m.Role)
}

func TestPostMessageDeniedAtThreadLimit(t *testing.T) {
	// The free plan allows 50 messages per thread.
	f := newThreadFixture(t, billing.PlanFree)
	orgID := uuid.New()
	th := seedThread(t, f, orgID, uuid.New())
	for i := 0; i < 50; i++ {
		require.NoError(t, f.repo.CreateMessage(context.Background(), &Message{
			ID: uuid.New(), ThreadID: th.ID, OrgID: orgID, Role: RoleUser, Content: "seed",
		}))
	}

	_, err := f.service.PostMessage(context.Background(), orgID, uuid.New(), th.ID, &PostMessageRequest{
		Content: "one more",
	})
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.Contains(t, denied.Reason, "message limit")
}

func TestPostMessageTokenReserveBoundary(t *testing.T) {
	// The free plan allows 50000 tokens per month. A reserve that lands
	// exactly on the cap is allowed; one token past it is not.
	f := newThreadFixture(t, billing.PlanFree)
	orgID := uuid.New()
	th := seedThread(t, f, orgID, uuid.New())

	_, err := f.counters.AddTokens(context.Background(), orgID, 49000)
	require.NoError(t, err)

	_, err = f.service.PostMessage(context.Background(), orgID, uuid.New(), th.ID, &PostMessageRequest{
		Content:   "fits exactly",
		MaxTokens: 1000,
	})
	require.NoError(t, err)

	_, err = f.service.PostMessage(context.Background(), orgID, uuid.New(), th.ID, &PostMessageRequest{
		Content:   "one over",
		MaxTokens: 1001,
	})
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.Contains(t, denied.Reason, "token limit")
}

func TestAppendAnswerRecordsTokens(t *testing.T) {
	f := newThreadFixture(t, billing.PlanStarter)
	orgID := uuid.New()
	th := seedThread(t, f, orgID, uuid.New())

	m, err := f.service.AppendAnswer(context.Background(), orgID, th.ID, &AssistantMessageInput{
		Content: "Clause 4 covers termination.",
		Citations: []Citation{
			{DocumentID: uuid.New(), Page: 7, Snippet: "either party may terminate"},
		},
		Tokens: 420,
	})
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, m.Role)

	used, err := f.counters.TokensUsed(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(420), used)
}

func TestPostMessageUnknownThread(t *testing.T) {
	f := newThreadFixture(t, billing.PlanFree)

	_, err := f.service.PostMessage(context.Background(), uuid.New(), uuid.New(), uuid.New(), &PostMessageRequest{
		Content: "hello?",
	})
	assert.ErrorIs(t, err, ErrThreadNotFound)
}
