package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/repository"
)

// memoryStore is an in-process stand-in for Postgres so the demo can run
// the whole pipeline without any external service. It mirrors the claim
// and compare-and-set semantics of the real repositories.
type memoryStore struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	handoffs map[string][]*model.HandoffRecord
	tenants  map[string]map[string]string // tenantID -> employeeID -> name
	insertCh chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		jobs:     make(map[string]*model.Job),
		handoffs: make(map[string][]*model.HandoffRecord),
		tenants:  make(map[string]map[string]string),
		insertCh: make(chan struct{}, 1),
	}
}

func (s *memoryStore) addTenant(tenantID string, employees map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenantID] = employees
}

func copyJob(j *model.Job) *model.Job {
	c := *j
	c.EmployeeIDs = append([]string(nil), j.EmployeeIDs...)
	c.CompletedStageIDs = append([]string(nil), j.CompletedStageIDs...)
	return &c
}

// --- repository.JobRepository ---

func (s *memoryStore) Insert(ctx context.Context, tx repository.Tx, job *model.Job) error {
	s.mu.Lock()
	if _, ok := s.jobs[job.ID]; ok {
		s.mu.Unlock()
		return domain.ErrAlreadyExists
	}
	s.jobs[job.ID] = copyJob(job)
	s.mu.Unlock()
	select {
	case s.insertCh <- struct{}{}:
	default:
	}
	return nil
}

func (s *memoryStore) FindByID(ctx context.Context, tx repository.Tx, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

func (s *memoryStore) ListByTenant(ctx context.Context, tenantID string, statusIn []model.JobStatus, limit int) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if len(statusIn) > 0 {
			match := false
			for _, st := range statusIn {
				if j.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ClaimNext(ctx context.Context, maxActivePerTenant int) (*model.Job, error) {
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
	pick.UpdatedAt = time.Now()
	pick.HeartbeatAt = pick.UpdatedAt
	return copyJob(pick), nil
}

func (s *memoryStore) UpdateProgress(ctx context.Context, tx repository.Tx, jobID string, upd repository.ProgressUpdate) error {
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

func (s *memoryStore) CompareAndSetStatus(ctx context.Context, tx repository.Tx, jobID string, from []model.JobStatus, to model.JobStatus, errorMessage string) (bool, error) {
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

func (s *memoryStore) Status(ctx context.Context, jobID string) (model.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return j.Status, nil
}

func (s *memoryStore) Heartbeat(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.HeartbeatAt = time.Now()
	}
	return nil
}

func (s *memoryStore) PromoteAged(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status == model.JobStatusQueued && j.Priority == model.PriorityLow && j.QueuedAt.Before(olderThan) {
			j.Priority = model.PriorityMedium
			j.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) ReclaimStale(ctx context.Context, heartbeatOlderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		switch j.Status {
		case model.JobStatusPending, model.JobStatusProcessing:
			if j.HeartbeatAt.Before(heartbeatOlderThan) {
				j.Status = model.JobStatusQueued
				j.CurrentPhase = model.PhaseQueued
				j.UpdatedAt = time.Now()
				n++
			}
		}
	}
	return n, nil
}

// --- repository.HandoffRepository ---

func (s *memoryStore) Append(ctx context.Context, tx repository.Tx, rec *model.HandoffRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *rec
	s.handoffs[rec.JobID] = append(s.handoffs[rec.JobID], &c)
	return nil
}

func (s *memoryStore) ListByJob(ctx context.Context, jobID string) ([]*model.HandoffRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.HandoffRecord(nil), s.handoffs[jobID]...), nil
}

// --- repository.DirectoryRepository ---

func (s *memoryStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tenants[tenantID]
	return ok, nil
}

func (s *memoryStore) EmployeeNames(ctx context.Context, tenantID string, employeeIDs []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[string]string)
	for _, id := range employeeIDs {
		if name, ok := s.tenants[tenantID][id]; ok {
			names[id] = name
		}
	}
	return names, nil
}

// --- worker.InsertHints ---

func (s *memoryStore) Hints(ctx context.Context) (<-chan struct{}, error) {
	return s.insertCh, nil
}

// --- repository.TransactionManager ---

// WithTx runs fn directly; every store method is already atomic under the
// mutex, so the demo has no multi-write window to protect.
func (s *memoryStore) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// stdoutPublisher prints each job event, standing in for the Redis stream.
type stdoutPublisher struct{}

func (stdoutPublisher) Publish(ctx context.Context, event model.JobEvent) error {
	fmt.Printf("event %-6s job=%s status=%-10s phase=%-28q progress=%d%%\n",
		event.EventType, event.Snapshot.JobID, event.Snapshot.Status,
		event.Snapshot.CurrentPhase, event.Snapshot.ProgressPercentage)
	return nil
}
