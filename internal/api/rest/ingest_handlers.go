package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/boxscore/internal/backfill"
)

// IngestHandler proxies API calls to the backfill job service.
type IngestHandler struct {
	service *backfill.Service
}

// NewIngestHandler wires the REST layer to the backfill service.
func NewIngestHandler(service *backfill.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// HandleIngestRequest handles POST /api/v1/ingest
func (h *IngestHandler) HandleIngestRequest(w http.ResponseWriter, r *http.Request) {
	var req backfill.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.service.Enqueue(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to enqueue ingest job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleIngestStatus handles GET /api/v1/ingest/status
func (h *IngestHandler) HandleIngestStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleJob handles GET /api/v1/ingest/jobs/{jobID}
func (h *IngestHandler) HandleJob(w http.ResponseWriter, r *http.Request) {
	job, events, err := h.service.GetJob(r.Context(), mux.Vars(r)["jobID"])
	if errors.Is(err, backfill.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "Job not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch job", err)
		return
	}
	if events == nil {
		events = []backfill.Event{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job":    jobPayload(job),
		"events": events,
	})
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *backfill.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"job_type":         job.JobType,
		"season":           job.Season,
		"dry_run":          job.DryRun,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"accepted_rows":    job.AcceptedRows,
		"dropped_rows":     job.DroppedRows,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if job.StartDate.Valid {
		payload["start_date"] = job.StartDate.String
	}
	if job.EndDate.Valid {
		payload["end_date"] = job.EndDate.String
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
