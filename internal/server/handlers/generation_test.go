package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/core/store"
	apperrors "github.com/portraitforge/portraitforge/internal/errors"
)

type fakeGenerator struct {
	report *core.Report
	err    error
	calls  int
}

func (g *fakeGenerator) Run(_ context.Context, subjectRef string, category core.Category) (*core.Report, error) {
	g.calls++
	if g.report != nil {
		g.report.SubjectRef = subjectRef
		g.report.Category = category
	}
	return g.report, g.err
}

type memoryLog struct {
	mu      sync.Mutex
	records []store.GenerationRecord
}

func (l *memoryLog) SaveGeneration(_ context.Context, record store.GenerationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *memoryLog) GetGeneration(_ context.Context, id string) (*store.GenerationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range l.records {
		if record.ID == id {
			copied := record
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (l *memoryLog) ListGenerations(_ context.Context, limit int) ([]store.GenerationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > len(l.records) {
		limit = len(l.records)
	}
	return append([]store.GenerationRecord(nil), l.records[:limit]...), nil
}

type memoryArtifacts map[string]*store.StoredArtifact

func (m memoryArtifacts) GetArtifact(_ context.Context, id string) (*store.StoredArtifact, error) {
	if artifact, ok := m[id]; ok {
		return artifact, nil
	}
	return nil, store.ErrNotFound
}

func successfulReport(n int) *core.Report {
	now := time.Now().UTC()
	report := &core.Report{Required: n, RequestedAt: now, CompletedAt: now.Add(1500 * time.Millisecond)}
	for i := 1; i <= n; i++ {
		report.Slots = append(report.Slots, core.SlotResult{
			Index:    i,
			Artifact: &core.Artifact{Index: i, Ref: "artifact://slot", ContentType: "image/png", Attempts: 1},
		})
	}
	return report
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func postGeneration(h *GenerationHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/v1/generations", strings.NewReader(body)))
	return rec
}

func TestCreateGeneration(t *testing.T) {
	log := &memoryLog{}
	generator := &fakeGenerator{report: successfulReport(3)}
	h := NewGenerationHandler(generator, nil, log, nil, 10, 500)

	rec := postGeneration(h, `{"subject_ref":" alice ","category":"age_progression"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp GenerationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, core.CategoryAgeProgression, resp.Category)
	assert.Equal(t, "alice", resp.SubjectRef)
	assert.Equal(t, 3, resp.Succeeded)
	assert.Len(t, resp.Artifacts, 3)
	assert.Len(t, resp.Slots, 3)
	assert.Equal(t, int64(1500), resp.ElapsedMS)

	require.Len(t, log.records, 1)
	assert.Equal(t, resp.ID, log.records[0].ID)
	assert.Equal(t, store.StatusSucceeded, log.records[0].Status)
}

func TestCreateGenerationRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{"MalformedJSON", `{"subject_ref":`, "INVALID_INPUT"},
		{"UnknownField", `{"subject_ref":"a","category":"appearance","extra":1}`, "INVALID_INPUT"},
		{"MissingSubject", `{"subject_ref":"  ","category":"appearance"}`, "VALIDATION_FAILED"},
		{"MissingCategory", `{"subject_ref":"alice"}`, "VALIDATION_FAILED"},
		{"UnsupportedCategory", `{"subject_ref":"alice","category":"cartoon"}`, apperrors.CodeUnsupportedCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			generator := &fakeGenerator{report: successfulReport(1)}
			h := NewGenerationHandler(generator, nil, nil, nil, 10, 500)

			rec := postGeneration(h, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error.Code)
			assert.Zero(t, generator.calls)
		})
	}
}

func TestCreateGenerationQuorumFailure(t *testing.T) {
	report := successfulReport(3)
	report.Slots[1] = core.SlotResult{Index: 2, Err: core.NewError(core.KindStoreFailed, "store slot 2 artifact", nil)}
	runErr := &core.InsufficientArtifactsError{
		Category:  core.CategoryAgeProgression,
		Required:  3,
		Succeeded: 2,
		Slots:     []core.SlotError{{Index: 2, Err: report.Slots[1].Err}},
	}
	log := &memoryLog{}
	h := NewGenerationHandler(&fakeGenerator{report: report, err: runErr}, nil, log, nil, 10, 500)

	rec := postGeneration(h, `{"subject_ref":"alice","category":"age-progression"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apperrors.CodeQuorumFailed, decodeError(t, rec).Error.Code)

	require.Len(t, log.records, 1)
	assert.Equal(t, store.StatusFailed, log.records[0].Status)
	assert.Equal(t, 2, log.records[0].Succeeded)
}

func TestCreateGenerationMissingSource(t *testing.T) {
	runErr := core.NewError(core.KindMissingSourceImage, `subject "ghost" has no usable source image`, nil)
	log := &memoryLog{}
	h := NewGenerationHandler(&fakeGenerator{err: runErr}, nil, log, nil, 10, 500)

	rec := postGeneration(h, `{"subject_ref":"ghost","category":"appearance"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.Len(t, log.records, 1)
	assert.Equal(t, core.CategoryAppearance, log.records[0].Category)
	assert.Equal(t, "ghost", log.records[0].SubjectRef)
}

func TestGetGeneration(t *testing.T) {
	log := &memoryLog{records: []store.GenerationRecord{{ID: "gen-1", Status: store.StatusSucceeded}}}
	h := NewGenerationHandler(nil, nil, log, nil, 10, 500)

	rec := httptest.NewRecorder()
	h.GetGeneration(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/generations/gen-1", nil), "id", "gen-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetGeneration(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/generations/nope", nil), "id", "nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListGenerations(t *testing.T) {
	log := &memoryLog{records: []store.GenerationRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	h := NewGenerationHandler(nil, nil, log, nil, 10, 500)

	rec := httptest.NewRecorder()
	h.ListGenerations(rec, httptest.NewRequest(http.MethodGet, "/v1/generations?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var records []store.GenerationRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	assert.Len(t, records, 2)

	rec = httptest.NewRecorder()
	h.ListGenerations(rec, httptest.NewRequest(http.MethodGet, "/v1/generations?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetArtifact(t *testing.T) {
	artifacts := memoryArtifacts{
		"abc": {ID: "abc", Filename: "appearance-1.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	}
	h := NewGenerationHandler(nil, artifacts, nil, nil, 10, 500)

	rec := httptest.NewRecorder()
	h.GetArtifact(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/artifacts/abc", nil), "id", "abc"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	h.GetArtifact(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/artifacts/missing", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type countingAdmission struct{ resets int }

func (a *countingAdmission) Snapshot(perMinute, perDay int) core.AdmissionSnapshot {
	return core.AdmissionSnapshot{MinuteCount: 4, DayCount: 9, PerMinute: perMinute, PerDay: perDay, EstimatedWait: 12 * time.Second}
}

func (a *countingAdmission) Reset() { a.resets++ }

func TestAdmissionEndpoints(t *testing.T) {
	admission := &countingAdmission{}
	h := NewGenerationHandler(nil, nil, nil, admission, 10, 500)

	rec := httptest.NewRecorder()
	h.AdmissionStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/admission", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AdmissionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.MinuteCount)
	assert.Equal(t, 10, resp.PerMinute)
	assert.Equal(t, 500, resp.PerDay)
	assert.Equal(t, int64(12000), resp.EstimatedWaitMS)
	assert.Equal(t, "12s", resp.EstimatedWaitHuman)

	rec = httptest.NewRecorder()
	h.ResetAdmission(rec, httptest.NewRequest(http.MethodPost, "/admin/admission/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, admission.resets)
}

func TestEndpointsWithoutBackends(t *testing.T) {
	h := NewGenerationHandler(nil, nil, nil, nil, 10, 500)

	rec := postGeneration(h, `{"subject_ref":"alice","category":"appearance"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.ListGenerations(rec, httptest.NewRequest(http.MethodGet, "/v1/generations", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.AdmissionStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/admission", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
