package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/narrator/internal/db"
	"github.com/bobarin/narrator/internal/models"
)

// signedURLTTL is the lifetime of download links in seconds.
const signedURLTTL = 3600

// Store is the job persistence the API reads and writes.
type Store interface {
	CreateRenderJob(ctx context.Context, job *models.RenderJob) error
	GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	ListRenderJobs(ctx context.Context, status string, limit, offset int) ([]models.RenderJob, error)
	GetJobOutputs(ctx context.Context, jobID uuid.UUID) ([]models.RenderOutput, error)
}

type Enqueuer interface {
	EnqueueRender(ctx context.Context, jobID uuid.UUID) error
}

// URLSigner turns a storage path into a download link.
type URLSigner interface {
	GetSignedURL(ctx context.Context, storagePath string, expiresIn int) (string, error)
}

type Handler struct {
	db      Store
	queue   Enqueuer
	storage URLSigner // nil when uploads are disabled
	logger  *slog.Logger
}

func NewHandler(store Store, q Enqueuer, signer URLSigner, logger *slog.Logger) *Handler {
	return &Handler{
		db:      store,
		queue:   q,
		storage: signer,
		logger:  logger,
	}
}

// CreateRender handles POST /v1/renders
func (h *Handler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, msg := buildRenderJob(req)
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.db.CreateRenderJob(r.Context(), job); err != nil {
		h.logger.Error("failed to create render job", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create render job")
		return
	}

	if err := h.queue.EnqueueRender(r.Context(), job.ID); err != nil {
		h.logger.Error("failed to enqueue render job", "job_id", job.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	h.logger.Info("render job queued", "job_id", job.ID, "languages", strings.Join(job.Languages, ","))
	respondJSON(w, http.StatusCreated, models.CreateRenderResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// buildRenderJob validates a request and applies the defaults. A non-empty
// message means the request was rejected.
func buildRenderJob(req models.CreateRenderRequest) (*models.RenderJob, string) {
	languages := make([]string, 0, len(req.Languages))
	seen := map[string]bool{}
	for _, l := range req.Languages {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		if strings.ContainsAny(l, `/\`) {
			return nil, "Invalid language: " + l
		}
		seen[l] = true
		languages = append(languages, l)
	}
	if len(languages) == 0 {
		return nil, "At least one language is required"
	}
	if strings.TrimSpace(req.InputDir) == "" {
		return nil, "input_dir is required"
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return nil, "output_dir is required"
	}
	if !filepath.IsAbs(req.InputDir) || !filepath.IsAbs(req.OutputDir) {
		return nil, "input_dir and output_dir must be absolute paths"
	}

	shortsMode := models.ShortsModeOff
	if req.ShortsMode != nil {
		shortsMode = *req.ShortsMode
	}
	switch shortsMode {
	case models.ShortsModeOff, models.ShortsModeReflow, models.ShortsModeRender:
	default:
		return nil, "Invalid shorts_mode. Allowed: off, reflow, render"
	}

	wrap := true
	if req.WrapIntroOutro != nil {
		wrap = *req.WrapIntroOutro
	}

	options := models.JSONB{}
	if len(req.SectionPrompts) > 0 {
		prompts := make(map[string]interface{}, len(req.SectionPrompts))
		for name, prompt := range req.SectionPrompts {
			prompts[name] = prompt
		}
		options["section_prompts"] = prompts
	}
	if req.ASSSidecar {
		options["ass_sidecar"] = true
	}

	return &models.RenderJob{
		ID:                uuid.New(),
		Status:            models.JobStatusQueued,
		Languages:         languages,
		InputDir:          filepath.Clean(req.InputDir),
		ImagesDir:         req.ImagesDir,
		OutputDir:         filepath.Clean(req.OutputDir),
		ShortsMode:        shortsMode,
		WrapIntroOutro:    wrap,
		SecondaryLanguage: req.SecondaryLanguage,
		Options:           options,
	}, ""
}

// ListRenders handles GET /v1/renders
// Query params:
//   - status: filter by job status (queued, running, succeeded, failed)
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListRenders(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		switch models.JobStatus(statusFilter) {
		case models.JobStatusQueued, models.JobStatusRunning,
			models.JobStatusSucceeded, models.JobStatusFailed:
		default:
			respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: queued, running, succeeded, failed")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	jobs, err := h.db.ListRenderJobs(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list render jobs")
		return
	}
	if jobs == nil {
		jobs = []models.RenderJob{}
	}

	respondJSON(w, http.StatusOK, jobs)
}

// GetRender handles GET /v1/renders/{id}
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	outputs, err := h.db.GetJobOutputs(r.Context(), job.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get outputs")
		return
	}

	respondJSON(w, http.StatusOK, models.RenderJobResponse{
		RenderJob: *job,
		Outputs:   h.withURLs(r.Context(), outputs),
	})
}

// GetRenderOutputs handles GET /v1/renders/{id}/outputs
func (h *Handler) GetRenderOutputs(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	outputs, err := h.db.GetJobOutputs(r.Context(), job.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get outputs")
		return
	}

	respondJSON(w, http.StatusOK, h.withURLs(r.Context(), outputs))
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*models.RenderJob, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return nil, false
	}

	job, err := h.db.GetRenderJob(r.Context(), jobID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Render job not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get render job")
		return nil, false
	}
	return job, true
}

// withURLs signs a download link for every uploaded output.
func (h *Handler) withURLs(ctx context.Context, outputs []models.RenderOutput) []models.RenderOutput {
	if outputs == nil {
		return []models.RenderOutput{}
	}
	if h.storage == nil {
		return outputs
	}
	for i := range outputs {
		if outputs[i].StoragePath == nil {
			continue
		}
		url, err := h.storage.GetSignedURL(ctx, *outputs[i].StoragePath, signedURLTTL)
		if err != nil {
			h.logger.Warn("failed to sign output url", "path", *outputs[i].StoragePath, "error", err)
			continue
		}
		outputs[i].URL = &url
	}
	return outputs
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
