//go:build !integration

package worker_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

// memStore backs the runner tests with the same claim and compare-and-set
// contract as the Postgres repository, all in memory.
type memStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	handoffs map[string][]*model.HandoffRecord
	names    map[string]string
	insertCh chan struct{}
}

var (
	_ repository.JobRepository       = (*memStore)(nil)
	_ repository.HandoffRepository   = (*memStore)(nil)
	_ repository.DirectoryRepository = (*memStore)(nil)
	_ repository.TransactionManager  = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		jobs:     make(map[string]*model.Job),
		handoffs: make(map[string][]*model.HandoffRecord),
		names:    make(map[string]string),
		insertCh: make(chan struct{}, 1),
	}
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	c.EmployeeIDs = append([]string(nil), j.EmployeeIDs...)
	c.CompletedStageIDs = append([]string(nil), j.CompletedStageIDs...)
	return &c
}

func (s *memStore) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	s.mu.Lock()
	if _, ok := s.jobs[job.ID]; ok {
		s.mu.Unlock()
		return domain.ErrAlreadyExists
	}
	s.jobs[job.ID] = cloneJob(job)
	s.mu.Unlock()
	select {
	case s.insertCh <- struct{}{}:
	default:
	}
	return nil
}

func (s *memStore) FindByID(ctx context.Context, tx repository.Tx, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *memStore) ListByTenant(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.TenantID == tenantID {
			out = append(out, cloneJob(j))
		}
	}
	return out, nil
}

func (s *memStore) ClaimNext(ctx context.Context, maxActivePerTenant int) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make(map[string]int)
	for _, j := range s.jobs {
		if j.Active() {
			active[j.TenantID]++
		}
	}
	var pick *model.Job
	for _, j := range s.jobs {
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
	pick.HeartbeatAt = time.Now()
	return cloneJob(pick), nil
}

func (s *memStore) UpdateProgress(ctx context.Context, tx repository.Tx, jobID string, upd repository.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.SuccessfulCount = upd.SuccessfulCount
	j.FailedCount = upd.FailedCount
	if j.Status == model.JobStatusPending || j.Status == model.JobStatusProcessing {
		j.CurrentPhase = upd.CurrentPhase
	}
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

func (s *memStore) CompareAndSetStatus(ctx context.Context, tx repository.Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
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

func (s *memStore) Status(ctx context.Context, jobID string) (model.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return j.Status, nil
}

func (s *memStore) Heartbeat(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.HeartbeatAt = time.Now()
	}
	return nil
}

func (s *memStore) PromoteAged(ctx context.Context, olderThan time.Time) (int, error) { return 0, nil }

func (s *memStore) ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error) {
	return 0, nil
}

func (s *memStore) Append(ctx context.Context, tx repository.Tx, rec *model.HandoffRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.handoffs[rec.JobID] = append(s.handoffs[rec.JobID], &c)
	return nil
}

func (s *memStore) ListByJob(ctx context.Context, jobID string) ([]*model.HandoffRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.HandoffRecord(nil), s.handoffs[jobID]...), nil
}

func (s *memStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	return true, nil
}

func (s *memStore) EmployeeNames(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for _, id := range employeeIDs {
		if n, ok := s.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (s *memStore) Hints(ctx context.Context) (<-chan struct{}, error) {
	return s.insertCh, nil
}

// WithTx runs fn directly; the store's mutex already makes each repository
// call atomic, which is all the runner's transition writes rely on here.
func (s *memStore) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// get returns the live stored job for assertions.
func (s *memStore) get(jobID string) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneJob(s.jobs[jobID])
}

// scriptedStages records every stage invocation and can fail or run a hook
// at chosen points. Keys are "employeeID/stageID".
type scriptedStages struct {
	mu     sync.Mutex
	calls  map[string]int
	failAt map[string]error
	hookAt map[string]func()
}

var _ adapter.StageRunner = (*scriptedStages)(nil)

func newScriptedStages() *scriptedStages {
	return &scriptedStages{
		calls:  make(map[string]int),
		failAt: make(map[string]error),
		hookAt: make(map[string]func()),
	}
}

func (s *scriptedStages) RunStage(ctx context.Context, req adapter.StageRequest) error {
	key := req.EmployeeID + "/" + req.Stage.ID
	s.mu.Lock()
	s.calls[key]++
	hook := s.hookAt[key]
	err := s.failAt[key]
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (s *scriptedStages) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *scriptedStages) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// capturingPublisher records the event stream for ordering assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []model.JobEvent
}

var _ adapter.EventPublisher = (*capturingPublisher)(nil)

func (p *capturingPublisher) Publish(ctx context.Context, event model.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) all() []model.JobEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.JobEvent(nil), p.events...)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
