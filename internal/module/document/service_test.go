package document

import (
	"bytes"
	"context"
	"io"
	"strings"
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

type fakeDocRepo struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]*Document
	projects map[uuid.UUID]*Project
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		docs:     make(map[uuid.UUID]*Document),
		projects: make(map[uuid.UUID]*Project),
	}
}

func (r *fakeDocRepo) CreateProject(_ context.Context, project *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project
	return nil
}

func (r *fakeDocRepo) GetProject(_ context.Context, orgID, id uuid.UUID) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok || project.OrgID != orgID {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (r *fakeDocRepo) ListProjects(_ context.Context, orgID uuid.UUID) ([]*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var projects []*Project
	for _, project := range r.projects {
		if project.OrgID == orgID {
			projects = append(projects, project)
		}
	}
	return projects, nil
}

func (r *fakeDocRepo) Create(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.OrgID != orgID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (r *fakeDocRepo) List(_ context.Context, orgID uuid.UUID, _ *pagination.Pagination) ([]*Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []*Document
	for _, doc := range r.docs {
		if doc.OrgID == orgID {
			docs = append(docs, doc)
		}
	}
	return docs, int64(len(docs)), nil
}

func (r *fakeDocRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, failReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Status = status
	doc.FailReason = failReason
	return nil
}

func (r *fakeDocRepo) Delete(_ context.Context, orgID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.OrgID != orgID {
		return ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeDocRepo) DeleteBatch(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.docs, id)
	}
	return nil
}

func (r *fakeDocRepo) CountByOrg(_ context.Context, orgID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, doc := range r.docs {
		if doc.OrgID == orgID {
			count++
		}
	}
	return count, nil
}

func (r *fakeDocRepo) ListOlderThan(_ context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []*Document
	for _, doc := range r.docs {
		if doc.OrgID == orgID && doc.CreatedAt.Before(cutoff) {
			docs = append(docs, doc)
		}
		if len(docs) == limit {
			break
		}
	}
	return docs, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, 0, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) DeleteBatch(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

func (s *fakeStore) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://example.com/" + key, nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
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

type docFixture struct {
	service *Service
	repo    *fakeDocRepo
	store   *fakeStore
	slots   *UploadSlots
	rdb     *redis.Client
}

func newDocFixture(t *testing.T, planID string) *docFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newFakeDocRepo()
	store := newFakeStore()
	slots := NewUploadSlots(rdb, time.Minute)
	gate := entitlement.NewGate(billing.NewCatalog())
	recorder := usage.NewRecorder(nullUsageRepo{}, usage.NewCounters(rdb), zap.NewNop(), 16)
	t.Cleanup(recorder.Close)
	m := metrics.NewWith(prometheus.NewRegistry(), "test")

	svc := NewService(repo, store, slots, &stubPlans{planID: planID}, gate, recorder, m, zap.NewNop())
	return &docFixture{service: svc, repo: repo, store: store, slots: slots, rdb: rdb}
}

func pdfUpload(name string, size int64) *UploadInput {
	return &UploadInput{
		Filename:    name,
		ContentType: "application/pdf",
		SizeBytes:   size,
		Body:        strings.NewReader("%PDF-1.7 test"),
	}
}

func TestUploadStoresDocument(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)
	orgID := uuid.New()

	doc, err := f.service.Upload(context.Background(), orgID, uuid.New(), pdfUpload("report.pdf", 1024))
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, doc.Status)
	assert.True(t, f.store.has(doc.StorageKey))

	active, err := f.slots.Active(context.Background(), orgID)
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestUploadIntoProject(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)
	orgID := uuid.New()

	project, err := f.service.CreateProject(context.Background(), orgID, &CreateProjectRequest{Name: "Contracts"})
	require.NoError(t, err)

	in := pdfUpload("contract.pdf", 1024)
	in.ProjectID = project.ID
	doc, err := f.service.Upload(context.Background(), orgID, uuid.New(), in)
	require.NoError(t, err)
	assert.Equal(t, project.ID, doc.ProjectID)
}

func TestUploadIntoUnknownProject(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)

	in := pdfUpload("contract.pdf", 1024)
	in.ProjectID = uuid.New()
	_, err := f.service.Upload(context.Background(), uuid.New(), uuid.New(), in)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUploadDeniedAtDocumentLimit(t *testing.T) {
	// The free plan allows 5 documents.
	f := newDocFixture(t, billing.PlanFree)
	orgID := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.repo.Create(context.Background(), &Document{
			ID: uuid.New(), OrgID: orgID, Filename: "seed.pdf", SizeBytes: 1,
		}))
	}

	_, err := f.service.Upload(context.Background(), orgID, uuid.New(), pdfUpload("sixth.pdf", 1024))
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.True(t, denied.UpgradeRequired)
	assert.Contains(t, denied.Reason, "document limit")
}

func TestUploadDeniedWhenFileTooLarge(t *testing.T) {
	// The free plan caps files at 10MB.
	f := newDocFixture(t, billing.PlanFree)

	_, err := f.service.Upload(context.Background(), uuid.New(), uuid.New(), pdfUpload("big.pdf", 11<<20))
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.Contains(t, denied.Reason, "file size")
}

func TestUploadExactlyAtFileSizeLimit(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)

	_, err := f.service.Upload(context.Background(), uuid.New(), uuid.New(), pdfUpload("exact.pdf", 10<<20))
	require.NoError(t, err)
}

func TestUploadDeniedOnConcurrencyLimit(t *testing.T) {
	// The free plan allows 1 concurrent upload.
	f := newDocFixture(t, billing.PlanFree)
	orgID := uuid.New()

	_, err := f.slots.Acquire(context.Background(), orgID)
	require.NoError(t, err)

	_, err = f.service.Upload(context.Background(), orgID, uuid.New(), pdfUpload("second.pdf", 1024))
	denied, ok := entitlement.AsDenied(err)
	require.True(t, ok)
	assert.Contains(t, denied.Reason, "concurrent uploads")

	// The denied upload released its own slot, not the in-flight one.
	active, activeErr := f.slots.Active(context.Background(), orgID)
	require.NoError(t, activeErr)
	assert.Equal(t, 1, active)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)

	_, err := f.service.Upload(context.Background(), uuid.New(), uuid.New(), &UploadInput{
		Filename:    "notes.txt",
		ContentType: "text/plain",
		SizeBytes:   10,
		Body:        strings.NewReader("plain text"),
	})
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestUploadRejectsEmptyBody(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)

	_, err := f.service.Upload(context.Background(), uuid.New(), uuid.New(), pdfUpload("empty.pdf", 0))
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestDeleteRemovesStoredObject(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)
	orgID := uuid.New()

	doc, err := f.service.Upload(context.Background(), orgID, uuid.New(), pdfUpload("report.pdf", 1024))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), orgID, doc.ID))
	assert.False(t, f.store.has(doc.StorageKey))

	_, err = f.service.Get(context.Background(), orgID, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDownloadURL(t *testing.T) {
	f := newDocFixture(t, billing.PlanFree)
	orgID := uuid.New()

	doc, err := f.service.Upload(context.Background(), orgID, uuid.New(), pdfUpload("report.pdf", 1024))
	require.NoError(t, err)

	url, err := f.service.DownloadURL(context.Background(), orgID, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, url, doc.StorageKey)
}
