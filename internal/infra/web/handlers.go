package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/model"
	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/usecase"
)

// A struct to define the expected JSON request body for creating a job.
type jobCreateRequest struct {
	TenantID       string   `json:"tenant_id"`
	EmployeeIDs    []string `json:"employee_ids"`
	GenerationMode string   `json:"generation_mode"`
}

type jobCreateResponse struct {
	JobID                    string `json:"job_id"`
	Priority                 string `json:"priority"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds"`
}

type commandResponse struct {
	JobID   string `json:"job_id"`
	Outcome string `json:"outcome"` // applied | noop | rejected
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	job, err := s.jobUC.Create(ctx, req.TenantID, req.EmployeeIDs, req.GenerationMode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyEmployeeSet),
			errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrUnknownTenant):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, "Failed to create job", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, jobCreateResponse{
		JobID:                    job.ID,
		Priority:                 string(job.Priority),
		EstimatedDurationSeconds: job.EstimatedDurationSeconds,
	})
}

// commandHandler adapts a pause/resume/cancel use-case method to HTTP.
// Stale and terminal targets are reported in the body, not as errors.
func (s *Server) commandHandler(cmd func(context.Context, string) (usecase.CommandOutcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		outcome, err := cmd(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Job not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Command failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, commandResponse{JobID: jobID, Outcome: string(outcome)})
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListJobs returns a tenant's jobs. 'status' accepts a
// comma-separated list; 'limit' caps the page size.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	var statusIn []model.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statusIn = append(statusIn, model.JobStatus(strings.TrimSpace(s)))
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	snaps, err := s.jobUC.List(r.Context(), tenantID, statusIn, limit)
	if err != nil {
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []model.ProgressSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleListHandoffs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.jobUC.Handoffs(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		http.Error(w, "Failed to list handoffs", http.StatusInternalServerError)
		return
	}

	type handoffResponse struct {
		EmployeeID string `json:"employee_id"`
		FromStage  string `json:"from_stage"`
		ToStage    string `json:"to_stage,omitempty"`
		Outcome    string `json:"outcome,omitempty"`
		Error      string `json:"error,omitempty"`
		Timestamp  string `json:"timestamp"`
	}
	out := make([]handoffResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, handoffResponse{
			EmployeeID: rec.EmployeeID,
			FromStage:  rec.FromStage,
			ToStage:    rec.ToStage,
			Outcome:    string(rec.Outcome),
			Error:      rec.Error,
			Timestamp:  rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
