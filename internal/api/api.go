// Package api exposes the job-control HTTP surface: schedule, inspect,
// cancel, and follow jobs, and read out their qualified leads.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/job"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/joblog"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/store"
)

// Handler serves the job-control API.
type Handler struct {
	registry *job.Registry
	store    store.Store
	logs     *joblog.Logger
}

// NewHandler creates a Handler.
func NewHandler(registry *job.Registry, st store.Store, logs *joblog.Logger) *Handler {
	return &Handler{registry: registry, store: st, logs: logs}
}

// Routes builds the router.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.createJob)
		r.Get("/", h.listJobs)
		r.Get("/{id}", h.getJob)
		r.Post("/{id}/cancel", h.cancelJob)
		r.Get("/{id}/logs", h.jobLogs)
		r.Get("/{id}/leads", h.jobLeads)
	})

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

type createJobDTO struct {
	Categories   []string   `json:"categories"`
	Locations    []string   `json:"locations"`
	Country      string     `json:"country"`
	MinRating    float64    `json:"min_rating"`
	TargetLeads  int        `json:"target_leads"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	j := &model.Job{
		Categories:   dto.Categories,
		Locations:    dto.Locations,
		Country:      dto.Country,
		MinRating:    dto.MinRating,
		TargetLeads:  dto.TargetLeads,
		ScheduledFor: dto.ScheduledFor,
	}
	if err := h.registry.Schedule(r.Context(), j); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, j)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	var filter store.JobFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.JobStatus(s)
		switch status {
		case model.JobStatusScheduled, model.JobStatusRunning, model.JobStatusCompleted, model.JobStatusFailed:
			filter.Status = status
		default:
			h.writeError(w, http.StatusBadRequest, "unknown status: "+s)
			return
		}
	}

	jobs, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list jobs failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list jobs failed")
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		zap.L().Error("api: get job failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get job failed")
		return
	}
	h.writeJSON(w, http.StatusOK, j)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := h.store.GetJob(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		zap.L().Error("api: get job failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get job failed")
		return
	}

	if err := h.registry.Cancel(r.Context(), jobID); err != nil {
		zap.L().Error("api: cancel failed", zap.String("job_id", jobID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "job_id": jobID})
}

// jobLogs returns the buffered log entries, or streams them as NDJSON when
// follow=true. The stream ends when the client disconnects or the job's
// buffer is removed.
func (h *Handler) jobLogs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if r.URL.Query().Get("follow") != "true" {
		entries := h.logs.Entries(jobID)
		if entries == nil {
			entries = []model.JobLogEntry{}
		}
		h.writeJSON(w, http.StatusOK, entries)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsub := h.logs.Subscribe(jobID)
	defer unsub()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, entry := range h.logs.Entries(jobID) {
		_ = enc.Encode(entry)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case entry, open := <-ch:
			if !open {
				return
			}
			_ = enc.Encode(entry)
			flusher.Flush()
		}
	}
}

func (h *Handler) jobLeads(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, err := h.store.GetJob(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		zap.L().Error("api: get job failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get job failed")
		return
	}

	leads, err := h.store.ListLeads(r.Context(), jobID)
	if err != nil {
		zap.L().Error("api: list leads failed", zap.String("job_id", jobID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list leads failed")
		return
	}
	if leads == nil {
		leads = []model.EnrichedLead{}
	}
	h.writeJSON(w, http.StatusOK, leads)
}
