package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sqlc-dev/pqtype"

	"github.com/baronlegal/voice-intake-backend/internal/dispatch"
	"github.com/baronlegal/voice-intake-backend/internal/store"
)

// ─── POST /api/dispatch ──────────────────────────────────────────────────────

type dispatchRequest struct {
	// Email narrows the batch to one submitter's records. Empty means every
	// stored contact.
	Email string `json:"email,omitempty"`
}

// handleDispatch runs a bulk notification batch synchronously and records the
// tally in the dispatch_runs audit table. The response carries the full
// per-contact detail; the audit write is best-effort and never fails the
// batch that already ran.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if !decode(w, r, &req) {
		return
	}

	startedAt := time.Now()

	result, err := s.batcher.DispatchAll(r.Context(), dispatch.Scope{Email: req.Email})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("dispatch batch: %w", err))
		return
	}

	s.recordRun(r, req.Email, startedAt, result)

	respond(w, http.StatusOK, result)
}

// recordRun writes the audit row for a finished batch. Failures are logged
// and swallowed — the notifications already went out.
func (s *Server) recordRun(r *http.Request, scopeEmail string, startedAt time.Time, result dispatch.BatchResult) {
	resultsJSON, err := json.Marshal(result.PerContact)
	if err != nil {
		s.logger.Error("dispatch: marshal run results", "error", err)
		return
	}

	_, err = s.contacts.RecordDispatchRun(r.Context(), store.RecordDispatchRunParams{
		ScopeEmail:   sql.NullString{String: scopeEmail, Valid: scopeEmail != ""},
		Total:        result.Total,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		Results:      pqtype.NullRawMessage{RawMessage: resultsJSON, Valid: true},
		StartedAt:    startedAt,
	})
	if err != nil {
		s.logger.Error("dispatch: record run failed", "error", err)
	}
}

// ─── GET /api/dispatch/runs ──────────────────────────────────────────────────

type dispatchRunResponse struct {
	ID           string          `json:"id"`
	ScopeEmail   string          `json:"scope_email,omitempty"`
	Total        int             `json:"total"`
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	Results      json.RawMessage `json:"results,omitempty"`
	StartedAt    string          `json:"started_at"`
	FinishedAt   string          `json:"finished_at"`
}

// handleListDispatchRuns serves the recent batch history, newest first.
func (s *Server) handleListDispatchRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.contacts.ListDispatchRuns(r.Context(), 50)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list dispatch runs: %w", err))
		return
	}

	resp := make([]dispatchRunResponse, len(runs))
	for i, run := range runs {
		out := dispatchRunResponse{
			ID:           run.ID.String(),
			ScopeEmail:   run.ScopeEmail.String,
			Total:        run.Total,
			SuccessCount: run.SuccessCount,
			ErrorCount:   run.ErrorCount,
			StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt:   run.FinishedAt.UTC().Format(time.RFC3339),
		}
		if run.Results.Valid {
			out.Results = json.RawMessage(run.Results.RawMessage)
		}
		resp[i] = out
	}

	respond(w, http.StatusOK, map[string]any{"runs": resp})
}
