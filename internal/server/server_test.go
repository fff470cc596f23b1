package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/config"
	"github.com/portraitforge/portraitforge/internal/core"
	apperrors "github.com/portraitforge/portraitforge/internal/errors"
	"github.com/portraitforge/portraitforge/internal/server/handlers"
)

type stubGenerator struct{}

func (stubGenerator) Run(_ context.Context, subjectRef string, category core.Category) (*core.Report, error) {
	now := time.Now().UTC()
	return &core.Report{
		Category:   category,
		SubjectRef: subjectRef,
		Required:   1,
		Slots: []core.SlotResult{
			{Index: 1, Artifact: &core.Artifact{Index: 1, Ref: "artifact://one", ContentType: "image/png", Attempts: 1}},
		},
		RequestedAt: now,
		CompletedAt: now,
	}, nil
}

type stubAdmission struct{ resets int }

func (a *stubAdmission) Snapshot(perMinute, perDay int) core.AdmissionSnapshot {
	return core.AdmissionSnapshot{PerMinute: perMinute, PerDay: perDay, TakenAt: time.Now().UTC()}
}

func (a *stubAdmission) Reset() { a.resets++ }

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/version", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServerGenerationRoutes(t *testing.T) {
	admission := &stubAdmission{}
	h := handlers.NewGenerationHandler(stubGenerator{}, nil, nil, admission, 10, 500)
	srv := New("127.0.0.1", 0, WithGeneration(h), WithAdminToken("secret"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generations", strings.NewReader(`{"subject_ref":"alice","category":"appearance"}`))
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admission", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/admission/reset", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, admission.resets)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/admission/reset", nil)
	req.Header.Set("Authorization", "Bearer secret")
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, admission.resets)
}

func TestServerWithoutAdminTokenHidesAdminRoutes(t *testing.T) {
	h := handlers.NewGenerationHandler(stubGenerator{}, nil, nil, &stubAdmission{}, 10, 500)
	srv := New("127.0.0.1", 0, WithGeneration(h))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/admission/reset", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerMetricsHandlerOverride(t *testing.T) {
	override := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte("portraitforge_generation_requests_total 1\n"))
	})
	srv := New("127.0.0.1", 0, WithMetricsHandler(override))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "generation_requests_total")
}

func TestWithTimeouts(t *testing.T) {
	srv := New("127.0.0.1", 0, WithTimeouts(config.ServerConfig{WriteTimeout: 2 * time.Minute}))

	assert.Equal(t, 30*time.Second, srv.timeouts.ReadTimeout)
	assert.Equal(t, 2*time.Minute, srv.timeouts.WriteTimeout)
	assert.Equal(t, 120*time.Second, srv.timeouts.IdleTimeout)
}
