package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"log/slog"

	"github.com/gorilla/mux"

	"github.com/garnizeh/applyd/internal/detect"
	"github.com/garnizeh/applyd/internal/models"
	"github.com/garnizeh/applyd/internal/pipeline"
	"github.com/garnizeh/applyd/internal/store"
)

// JobsHandler exposes the job queue over HTTP. All writes go through the
// store so the status machine is enforced server-side.
type JobsHandler struct {
	store  *store.Store
	runner *pipeline.Runner

	draining atomic.Bool
}

func NewJobsHandler(st *store.Store, runner *pipeline.Runner) *JobsHandler {
	return &JobsHandler{store: st, runner: runner}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// transitionStatus maps a store error to an HTTP status.
func transitionStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func jobID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

type addJobRequest struct {
	Company  string `json:"company"`
	Role     string `json:"role"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
	JDText   string `json:"jd_text"`
	Source   string `json:"source"`
}

// Add creates a job in status discovered. Re-posting an existing URL
// returns the existing job.
func (h *JobsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.Platform == "" {
		req.Platform = detect.FromURL(req.URL)
	}
	if req.Source == "" {
		req.Source = "api"
	}

	id, err := h.store.Add(r.Context(), req.Company, req.Role, req.URL, req.Platform, req.JDText, req.Source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil || job == nil {
		writeError(w, http.StatusInternalServerError, "job lookup after add failed")
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// List returns jobs newest first, optionally filtered by ?status=.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}

	jobs, err := h.store.Fetch(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Answers returns the screening-question audit log for one job.
func (h *JobsHandler) Answers(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	answers, err := h.store.AnswersForJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if answers == nil {
		answers = []models.FormAnswer{}
	}
	writeJSON(w, http.StatusOK, answers)
}

// transition applies one status edge and returns the updated job.
func (h *JobsHandler) transition(w http.ResponseWriter, r *http.Request, to models.Status) {
	id, ok := jobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.store.Transition(r.Context(), id, to, nil); err != nil {
		writeError(w, transitionStatus(err), err.Error())
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil || job == nil {
		writeError(w, http.StatusInternalServerError, "job lookup after transition failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusApproved)
}

func (h *JobsHandler) Skip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusSkipped)
}

// Submit marks a ready job as submitted. The operator confirms the final
// submission by hand; the service never clicks submit on its own.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusSubmitted)
}

// Retry re-queues a failed or manual job for processing.
func (h *JobsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.StatusApproved)
}

// Stats returns the per-status job counts in lifecycle order.
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type entry struct {
		Status models.Status `json:"status"`
		Count  int           `json:"count"`
	}
	out := make([]entry, 0, len(models.StatusOrder))
	total := 0
	for _, st := range models.StatusOrder {
		out = append(out, entry{Status: st, Count: counts[st]})
		total += counts[st]
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "statuses": out})
}

type runRequest struct {
	Max    int  `json:"max"`
	DryRun bool `json:"dry_run"`
}

// Run starts one asynchronous drain of the approved queue. A drain can take
// minutes with human pacing, far past the response write timeout, so the
// handler answers 202 and the drain finishes in the background. Only one
// drain runs at a time.
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	var req runRequest
	if r.Body != nil {
		// an empty body means defaults
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if !h.draining.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a drain is already running")
		return
	}

	go func() {
		defer h.draining.Store(false)
		res, err := h.runner.Drain(context.Background(), req.Max, req.DryRun)
		if err != nil {
			logger.Error("drain failed", slog.Any("err", err))
			return
		}
		logger.Info("drain complete",
			slog.Int("processed", res.Processed),
			slog.Int("succeeded", res.Succeeded),
			slog.Int("failed", res.Failed))
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true, "dry_run": req.DryRun})
}

// RunOne processes a single approved job.
func (h *JobsHandler) RunOne(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	id, ok := jobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	var req runRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	out, err := h.runner.ProcessOne(r.Context(), id, req.DryRun)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, pipeline.ErrNotApproved):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, out)
}
