//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

// ---- Mock JobRepository ----

// MockJobRepo is an in-memory job store. Every method can be overridden
// per test through its Func field; the default behavior mirrors the real
// repository's contract.
type MockJobRepo struct {
	mu   sync.Mutex
	Jobs map[string]*model.Job

	InsertFunc              func(ctx context.Context, tx repository.Tx, job *model.Job) error
	FindByIDFunc            func(ctx context.Context, tx repository.Tx, jobID string) (*model.Job, error)
	ClaimNextFunc           func(ctx context.Context, maxActivePerTenant int) (*model.Job, error)
	CompareAndSetStatusFunc func(ctx context.Context, tx repository.Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error)
	StatusFunc              func(ctx context.Context, jobID string) (model.JobStatus, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{Jobs: make(map[string]*model.Job)}
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	c.EmployeeIDs = append([]string(nil), j.EmployeeIDs...)
	c.CompletedStageIDs = append([]string(nil), j.CompletedStageIDs...)
	return &c
}

func (m *MockJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.Jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, jobID string) (*model.Job, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *MockJobRepo) ListByTenant(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.Jobs {
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
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockJobRepo) ClaimNext(ctx context.Context, maxActivePerTenant int) (*model.Job, error) {
	if m.ClaimNextFunc != nil {
		return m.ClaimNextFunc(ctx, maxActivePerTenant)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make(map[string]int)
	for _, j := range m.Jobs {
		if j.Active() {
			active[j.TenantID]++
		}
	}
	var pick *model.Job
	for _, j := range m.Jobs {
		if j.Status != model.JobStatusQueued || active[j.TenantID] >= maxActivePerTenant {
			continue
		}
		if pick == nil ||
			j.Priority.Rank() > pick.Priority.Rank() ||
			(j.Priority.Rank() == pick.Priority.Rank() && j.CreatedAt.Before(pick.CreatedAt)) {
			pick = j
		}
	}
	if pick == nil {
		return nil, domain.ErrNotFound
	}
	pick.Status = model.JobStatusPending
	pick.UpdatedAt = time.Now()
	pick.HeartbeatAt = pick.UpdatedAt
	return cloneJob(pick), nil
}

func (m *MockJobRepo) UpdateProgress(ctx context.Context, tx repository.Tx, jobID string, upd repository.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.SuccessfulCount = upd.SuccessfulCount
	j.FailedCount = upd.FailedCount
	j.CurrentPhase = upd.CurrentPhase
	j.CurrentEmployeeID = upd.CurrentEmployeeID
	j.CurrentEmployeeName = upd.CurrentEmployeeName
	j.CurrentStageID = upd.CurrentStageID
	j.CompletedStageIDs = append([]string(nil), upd.CompletedStageIDs...)
	if !upd.ProcessingStartedAt.IsZero() && j.ProcessingStartedAt.IsZero() {
		j.ProcessingStartedAt = upd.ProcessingStartedAt
	}
	j.UpdatedAt = time.Now()
	j.HeartbeatAt = j.UpdatedAt
	return nil
}

func (m *MockJobRepo) CompareAndSetStatus(ctx context.Context, tx repository.Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error) {
	if m.CompareAndSetStatusFunc != nil {
		return m.CompareAndSetStatusFunc(ctx, tx, jobID, from, to, errorMessage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	match := false
	for _, st := range from {
		if j.Status == st {
			match = true
			break
		}
	}
	if !match {
		return false, nil
	}
	j.Status = to
	if errorMessage != "" {
		j.ErrorMessage = errorMessage
	}
	switch to {
	case model.JobStatusQueued:
		j.CurrentPhase = model.PhaseQueued
	case model.JobStatusPaused:
		j.CurrentPhase = model.PhasePaused
	case model.JobStatusCompleted:
		j.CurrentPhase = model.PhaseCompleted
	case model.JobStatusFailed:
		j.CurrentPhase = model.PhaseFailed
	}
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockJobRepo) Status(ctx context.Context, jobID string) (model.JobStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[jobID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return j.Status, nil
}

func (m *MockJobRepo) Heartbeat(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.Jobs[jobID]; ok {
		j.HeartbeatAt = time.Now()
	}
	return nil
}

func (m *MockJobRepo) PromoteAged(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.Jobs {
		if j.Status == model.JobStatusQueued && j.Priority == model.PriorityLow && j.QueuedAt.Before(olderThan) {
			j.Priority = model.PriorityMedium
			n++
		}
	}
	return n, nil
}

func (m *MockJobRepo) ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.Jobs {
		switch j.Status {
		case model.JobStatusPending, model.JobStatusProcessing:
			if j.HeartbeatAt.Before(heartbeatOlderThan) {
				j.Status = model.JobStatusQueued
				j.CurrentPhase = model.PhaseQueued
				n++
			}
		}
	}
	return n, nil
}

// Get returns the stored job without copying, for assertions.
func (m *MockJobRepo) Get(jobID string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Jobs[jobID]
}

// ---- Mock HandoffRepository ----

type MockHandoffRepo struct {
	mu      sync.Mutex
	Records map[string][]*model.HandoffRecord

	AppendFunc func(ctx context.Context, tx repository.Tx, rec *model.HandoffRecord) error
}

var _ repository.HandoffRepository = (*MockHandoffRepo)(nil)

func NewMockHandoffRepo() *MockHandoffRepo {
	return &MockHandoffRepo{Records: make(map[string][]*model.HandoffRecord)}
}

func (m *MockHandoffRepo) Append(ctx context.Context, tx repository.Tx, rec *model.HandoffRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	m.Records[rec.JobID] = append(m.Records[rec.JobID], &c)
	return nil
}

func (m *MockHandoffRepo) ListByJob(ctx context.Context, jobID string) ([]*model.HandoffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.HandoffRecord(nil), m.Records[jobID]...), nil
}

// ---- Mock DirectoryRepository ----

type MockDirectoryRepo struct {
	Tenants map[string]map[string]string // tenantID -> employeeID -> name

	TenantExistsFunc  func(ctx context.Context, tenantID string) (bool, error)
	EmployeeNamesFunc func(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error)
}

var _ repository.DirectoryRepository = (*MockDirectoryRepo)(nil)

func NewMockDirectoryRepo() *MockDirectoryRepo {
	return &MockDirectoryRepo{Tenants: make(map[string]map[string]string)}
}

func (m *MockDirectoryRepo) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	if m.TenantExistsFunc != nil {
		return m.TenantExistsFunc(ctx, tenantID)
	}
	_, ok := m.Tenants[tenantID]
	return ok, nil
}

func (m *MockDirectoryRepo) EmployeeNames(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error) {
	if m.EmployeeNamesFunc != nil {
		return m.EmployeeNamesFunc(ctx, tenantID, employeeIDs)
	}
	names := make(map[string]string)
	for _, id := range employeeIDs {
		if n, ok := m.Tenants[tenantID][id]; ok {
			names[id] = n
		}
	}
	return names, nil
}

// ---- Mock EventPublisher ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []model.JobEvent

	PublishFunc func(ctx context.Context, event model.JobEvent) error
}

var _ adapter.EventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, event model.JobEvent) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) All() []model.JobEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.JobEvent(nil), m.Events...)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
