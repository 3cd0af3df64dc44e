package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kkarakas-lxera/coursegen-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.StageRunner = (*AgentRunner)(nil)

// AgentRunner calls the external agent pipeline over HTTP: one blocking
// POST per stage per employee. The service owns its own timeout; a non-2xx
// response or transport error counts as a stage failure.
type AgentRunner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAgentRunner(baseURL, apiKey string) *AgentRunner {
	return &AgentRunner{
		baseURL: baseURL,
		apiKey:  apiKey,
		// Per-call deadlines come from the caller's context; the client
		// timeout is only a backstop against a wedged connection.
		client: &http.Client{Timeout: 15 * time.Minute},
	}
}

type stageCallRequest struct {
	JobID          string `json:"job_id"`
	TenantID       string `json:"company_id"`
	EmployeeID     string `json:"employee_id"`
	GenerationMode string `json:"generation_mode"`
	Stage          string `json:"stage"`
}

type stageCallResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (r *AgentRunner) RunStage(ctx context.Context, req adapter.StageRequest) error {
	body, err := json.Marshal(stageCallRequest{
		JobID:          req.JobID,
		TenantID:       req.TenantID,
		EmployeeID:     req.EmployeeID,
		GenerationMode: req.GenerationMode,
		Stage:          req.Stage.ID,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/stages/run", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stage %s: %w", req.Stage.ID, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stage %s: service returned %d: %s", req.Stage.ID, resp.StatusCode, raw)
	}

	var out stageCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("stage %s: malformed response: %w", req.Stage.ID, err)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "stage reported failure"
		}
		return fmt.Errorf("stage %s: %s", req.Stage.ID, out.Error)
	}
	return nil
}
