//go:build !integration

package web_test

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/infra/web"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/usecase"
)

const testAPIKey = "test-api-key"

// mockJobRepo is the in-memory store the handler tests run against.
type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

var _ repository.JobRepository = (*mockJobRepo)(nil)

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *mockJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	c := *job
	m.jobs[job.ID] = &c
	return nil
}

func (m *mockJobRepo) FindByID(ctx context.Context, tx repository.Tx, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (m *mockJobRepo) ListByTenant(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if len(statusIn) > 0 {
			ok := false
			for _, st := range statusIn {
				if j.Status == st {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		c := *j
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockJobRepo) ClaimNext(ctx context.Context, maxActivePerTenant int) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (m *mockJobRepo) UpdateProgress(ctx context.Context, tx repository.Tx, jobID string, upd repository.ProgressUpdate) error {
	return nil
}

func (m *mockJobRepo) CompareAndSetStatus(ctx context.Context, tx repository.Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	for _, st := range from {
		if j.Status == st {
			j.Status = to
			if errorMessage != "" {
				j.ErrorMessage = errorMessage
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *mockJobRepo) Status(ctx context.Context, jobID string) (model.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return j.Status, nil
}

func (m *mockJobRepo) Heartbeat(ctx context.Context, jobID string) error { return nil }

func (m *mockJobRepo) PromoteAged(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (m *mockJobRepo) ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error) {
	return 0, nil
}

type mockHandoffRepo struct {
	mu      sync.Mutex
	records map[string][]*model.HandoffRecord
}

var _ repository.HandoffRepository = (*mockHandoffRepo)(nil)

func newMockHandoffRepo() *mockHandoffRepo {
	return &mockHandoffRepo{records: make(map[string][]*model.HandoffRecord)}
}

func (m *mockHandoffRepo) Append(ctx context.Context, tx repository.Tx, rec *model.HandoffRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	m.records[rec.JobID] = append(m.records[rec.JobID], &c)
	return nil
}

func (m *mockHandoffRepo) ListByJob(ctx context.Context, jobID string) ([]*model.HandoffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.HandoffRecord(nil), m.records[jobID]...), nil
}

type mockDirectoryRepo struct {
	tenants map[string][]string
}

var _ repository.DirectoryRepository = (*mockDirectoryRepo)(nil)

func (m *mockDirectoryRepo) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	_, ok := m.tenants[tenantID]
	return ok, nil
}

func (m *mockDirectoryRepo) EmployeeNames(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error) {
	return map[string]string{}, nil
}

type testEnv struct {
	server   *httptest.Server
	jobs     *mockJobRepo
	handoffs *mockHandoffRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	jobs := newMockJobRepo()
	handoffs := newMockHandoffRepo()
	dir := &mockDirectoryRepo{tenants: map[string][]string{"tenant-1": {"e1", "e2"}}}
	uc := usecase.NewJobUseCase(jobs, handoffs, dir, nil, 60, &logger)
	srv := httptest.NewServer(web.NewServer(uc, testAPIKey, &logger).Router())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, jobs: jobs, handoffs: handoffs}
}

func (e *testEnv) seedJob(t *testing.T, id string, status model.JobStatus) {
	t.Helper()
	job, err := model.NewJob(id, "tenant-1", []string{"e1", "e2"}, "", 60)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	job.Status = status
	if err := e.jobs.Insert(context.Background(), nil, job); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
}
