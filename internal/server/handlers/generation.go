package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/core/store"
	apperrors "github.com/portraitforge/portraitforge/internal/errors"
	"github.com/portraitforge/portraitforge/internal/metrics"
	"github.com/portraitforge/portraitforge/internal/observability"
)

const maxRequestBytes = 64 << 10

// Generator runs a category strategy for a subject.
type Generator interface {
	Run(ctx context.Context, subjectRef string, category core.Category) (*core.Report, error)
}

// ArtifactReader loads persisted artifacts.
type ArtifactReader interface {
	GetArtifact(ctx context.Context, id string) (*store.StoredArtifact, error)
}

// GenerationLog records and reads generation audit entries.
type GenerationLog interface {
	SaveGeneration(ctx context.Context, record store.GenerationRecord) error
	GetGeneration(ctx context.Context, id string) (*store.GenerationRecord, error)
	ListGenerations(ctx context.Context, limit int) ([]store.GenerationRecord, error)
}

// Admission exposes the shared admission limiter.
type Admission interface {
	Snapshot(perMinute, perDay int) core.AdmissionSnapshot
	Reset()
}

// GenerationRequest is the POST /v1/generations body.
type GenerationRequest struct {
	SubjectRef string `json:"subject_ref" validate:"required,max=1024"`
	Category   string `json:"category" validate:"required"`
}

// GenerationResponse describes a completed run.
type GenerationResponse struct {
	ID         string             `json:"id,omitempty"`
	Category   core.Category      `json:"category"`
	SubjectRef string             `json:"subject_ref"`
	Required   int                `json:"required"`
	Succeeded  int                `json:"succeeded"`
	Artifacts  []core.Artifact    `json:"artifacts"`
	Slots      []store.SlotRecord `json:"slots"`
	ElapsedMS  int64              `json:"elapsed_ms"`
}

// AdmissionResponse reports limiter occupancy.
type AdmissionResponse struct {
	MinuteCount        int       `json:"minute_count"`
	DayCount           int       `json:"day_count"`
	PerMinute          int       `json:"per_minute_limit"`
	PerDay             int       `json:"per_day_limit"`
	EstimatedWaitMS    int64     `json:"estimated_wait_ms"`
	EstimatedWaitHuman string    `json:"estimated_wait"`
	TakenAt            time.Time `json:"taken_at"`
}

// GenerationHandler serves the generation API.
type GenerationHandler struct {
	Generator Generator
	Artifacts ArtifactReader
	Log       GenerationLog
	Admission Admission

	PerMinute int
	PerDay    int

	validate *validator.Validate
}

// NewGenerationHandler returns a handler over the given dependencies. artifacts and
// log may be nil when the libsql store is not in use.
func NewGenerationHandler(generator Generator, artifacts ArtifactReader, log GenerationLog, admission Admission, perMinute, perDay int) *GenerationHandler {
	return &GenerationHandler{
		Generator: generator,
		Artifacts: artifacts,
		Log:       log,
		Admission: admission,
		PerMinute: perMinute,
		PerDay:    perDay,
		validate:  validator.New(),
	}
}

// Create handles POST /v1/generations.
func (h *GenerationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerationRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "request body must be a JSON generation request"))
		return
	}
	req.SubjectRef = strings.TrimSpace(req.SubjectRef)
	if err := h.validator().Struct(req); err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(ctx, err, "subject_ref and category are required"))
		return
	}

	category, err := core.ParseCategory(req.Category)
	if err != nil {
		respondWithError(w, r, apperrors.FromGenerationError(ctx, err))
		return
	}

	if h.Generator == nil {
		respondWithError(w, r, apperrors.NewInternalError("generation is not configured"))
		return
	}

	report, runErr := h.Generator.Run(ctx, req.SubjectRef, category)
	record := store.NewGenerationRecord(report, runErr)
	if report == nil {
		record.Category = category
		record.SubjectRef = req.SubjectRef
	}
	h.save(ctx, record)

	if runErr != nil {
		respondWithError(w, r, apperrors.FromGenerationError(ctx, runErr))
		return
	}

	response := GenerationResponse{
		ID:         record.ID,
		Category:   report.Category,
		SubjectRef: report.SubjectRef,
		Required:   report.Required,
		Succeeded:  report.Succeeded(),
		Artifacts:  report.Artifacts(),
		Slots:      record.Slots,
		ElapsedMS:  report.CompletedAt.Sub(report.RequestedAt).Milliseconds(),
	}
	if h.Log == nil {
		response.ID = ""
	}
	writeJSON(w, http.StatusCreated, response)
}

func (h *GenerationHandler) save(ctx context.Context, record store.GenerationRecord) {
	if h.Log == nil {
		return
	}
	// The request context may already be done; the record is still written.
	if err := h.Log.SaveGeneration(context.WithoutCancel(ctx), record); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to record generation",
			zap.String("generation_id", record.ID),
			zap.Error(err))
	}
}

// GetGeneration handles GET /v1/generations/{id}.
func (h *GenerationHandler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Log == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("generation records are not kept by this server"))
		return
	}

	record, err := h.Log.GetGeneration(ctx, chi.URLParam(r, "id"))
	if stderrors.Is(err, store.ErrNotFound) {
		respondWithError(w, r, apperrors.WrapNotFound(ctx, err, "generation not found"))
		return
	}
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "failed to load generation"))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListGenerations handles GET /v1/generations?limit=N.
func (h *GenerationHandler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Log == nil {
		writeJSON(w, http.StatusOK, []store.GenerationRecord{})
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			respondWithError(w, r, apperrors.NewInvalidInputError("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	records, err := h.Log.ListGenerations(ctx, limit)
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "failed to list generations"))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetArtifact handles GET /v1/artifacts/{id}.
func (h *GenerationHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Artifacts == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("artifacts are not served by this server"))
		return
	}

	artifact, err := h.Artifacts.GetArtifact(ctx, chi.URLParam(r, "id"))
	if stderrors.Is(err, store.ErrNotFound) {
		metrics.RecordArtifactServed(false)
		respondWithError(w, r, apperrors.WrapNotFound(ctx, err, "artifact not found"))
		return
	}
	if err != nil {
		respondWithError(w, r, apperrors.WrapDatabaseError(ctx, err, "failed to load artifact"))
		return
	}

	metrics.RecordArtifactServed(true)
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	if artifact.Filename != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+artifact.Filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

// AdmissionStatus handles GET /v1/admission.
func (h *GenerationHandler) AdmissionStatus(w http.ResponseWriter, r *http.Request) {
	if h.Admission == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("admission control is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, admissionResponse(h.Admission.Snapshot(h.PerMinute, h.PerDay)))
}

// ResetAdmission handles POST /admin/admission/reset.
func (h *GenerationHandler) ResetAdmission(w http.ResponseWriter, r *http.Request) {
	if h.Admission == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("admission control is not configured"))
		return
	}
	h.Admission.Reset()
	metrics.RecordAdmissionReset()
	if observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Admission windows reset by admin request")
	}
	writeJSON(w, http.StatusOK, admissionResponse(h.Admission.Snapshot(h.PerMinute, h.PerDay)))
}

func (h *GenerationHandler) validator() *validator.Validate {
	if h.validate == nil {
		h.validate = validator.New()
	}
	return h.validate
}

func admissionResponse(snapshot core.AdmissionSnapshot) AdmissionResponse {
	return AdmissionResponse{
		MinuteCount:        snapshot.MinuteCount,
		DayCount:           snapshot.DayCount,
		PerMinute:          snapshot.PerMinute,
		PerDay:             snapshot.PerDay,
		EstimatedWaitMS:    snapshot.EstimatedWait.Milliseconds(),
		EstimatedWaitHuman: snapshot.EstimatedWait.Round(time.Second).String(),
		TakenAt:            snapshot.TakenAt,
	}
}
