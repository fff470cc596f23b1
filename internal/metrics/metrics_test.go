package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/observability"
)

func newCollectorSystem(t *testing.T) (*telemetry.System, *telemetrytesting.FakeCollector) {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)
	return sys, collector
}

func TestTelemetrySinkEmitsGenerationMetrics(t *testing.T) {
	sys, collector := newCollectorSystem(t)
	sink := NewTelemetrySink(sys)

	sink.RecordGeneration(core.CategoryAgeProgression, true)
	sink.RecordSlotFailure(core.CategoryAgeProgression, core.KindQuotaExceeded)
	sink.RecordRetry(core.CategoryAgeProgression, core.KindContentFiltered)
	sink.RecordFallback(core.CategoryAppearance)
	sink.RecordAdmissionDenied(core.CategoryAppearance)
	sink.ObserveCallDuration(core.CategoryAppearance, 1200*time.Millisecond)

	for _, name := range []string{
		GenerationRequestsTotal,
		GenerationSlotFailuresTotal,
		GenerationRetriesTotal,
		GenerationFallbacksTotal,
		AdmissionDeniedTotal,
		GenerationCallDuration,
	} {
		require.Greater(t, collector.CountMetricsByName(name), 0, name)
	}
}

func TestTelemetrySinkUsesGlobalSystem(t *testing.T) {
	sys, collector := newCollectorSystem(t)
	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	NewTelemetrySink(nil).RecordFallback(core.CategoryAgeProgression)
	require.Equal(t, 1, collector.CountMetricsByName(GenerationFallbacksTotal))
}

func TestTelemetrySinkWithoutSystem(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	sink := NewTelemetrySink(nil)
	sink.RecordGeneration(core.CategoryAppearance, false)
	sink.ObserveCallDuration(core.CategoryAppearance, time.Second)
}

func TestPrometheusSink(t *testing.T) {
	sink := NewPrometheusSink("portraitforge")

	sink.RecordGeneration(core.CategoryAgeProgression, true)
	sink.RecordGeneration(core.CategoryAgeProgression, true)
	sink.RecordGeneration(core.CategoryAgeProgression, false)
	sink.RecordRetry(core.CategoryAgeProgression, core.KindQuotaExceeded)
	sink.RecordFallback(core.CategoryAppearance)
	sink.RecordAdmissionDenied(core.CategoryAppearance)
	sink.RecordSlotFailure(core.CategoryAppearance, core.KindStoreFailed)
	sink.ObserveCallDuration(core.CategoryAppearance, 800*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(sink.requests.WithLabelValues("age-progression", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.requests.WithLabelValues("age-progression", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.retries.WithLabelValues("age-progression", "quota_exceeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fallbacks.WithLabelValues("appearance")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.denied.WithLabelValues("appearance")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.slotFailures.WithLabelValues("appearance", "store_failed")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.callDuration))

	rec := httptest.NewRecorder()
	sink.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "portraitforge_generation_requests_total"))
}

func TestServiceMetrics(t *testing.T) {
	sys, collector := newCollectorSystem(t)
	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	RecordError("GENERATION_QUORUM_FAILED", http.StatusBadGateway)
	RecordErrorByEndpoint("/v1/generations", "GENERATION_QUORUM_FAILED")
	RecordPanic()
	RecordHealthCheck("store", false, 3*time.Millisecond)
	SetServerStartTime(time.Now().Unix())
	RecordArtifactServed(true)
	RecordArtifactServed(false)
	RecordAdmissionReset()

	expected := map[string]int{
		ErrorsTotalName:      1,
		ErrorsByEndpointName: 1,
		PanicsTotalName:      1,
		HealthCheckTotal:     1,
		HealthCheckDuration:  1,
		ServerStartTime:      1,
		ArtifactsServedTotal: 2,
		AdmissionResetsTotal: 1,
	}
	for name, want := range expected {
		require.Equal(t, want, collector.CountMetricsByName(name), name)
	}

	require.Equal(t, "server", errorClass(http.StatusBadGateway))
	require.Equal(t, "client", errorClass(http.StatusUnprocessableEntity))
}

func TestServiceMetricsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	require.NotPanics(t, func() {
		RecordError("INTERNAL_ERROR", http.StatusInternalServerError)
		RecordHealthCheck("store", true, time.Millisecond)
		SetServerStartTime(0)
	})
}
