package metrics

import (
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/observability"
)

// Generation metric names
const (
	GenerationRequestsTotal     = "generation_requests_total"
	GenerationSlotFailuresTotal = "generation_slot_failures_total"
	GenerationCallDuration      = "generation_call_duration_ms"
	GenerationRetriesTotal      = "generation_retries_total"
	GenerationFallbacksTotal    = "generation_fallbacks_total"
	AdmissionDeniedTotal        = "admission_denied_total"
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// TelemetrySink emits generation metrics through gofulmen telemetry.
//
// With a nil System it uses observability.TelemetrySystem at emission time, so a
// sink built before InitMetrics still reports once the exporter is up.
type TelemetrySink struct {
	System *telemetry.System
}

// NewTelemetrySink returns a sink bound to sys, or to the global system when sys is nil.
func NewTelemetrySink(sys *telemetry.System) *TelemetrySink {
	return &TelemetrySink{System: sys}
}

func (s *TelemetrySink) system() *telemetry.System {
	if s != nil && s.System != nil {
		return s.System
	}
	return observability.TelemetrySystem
}

func (s *TelemetrySink) counter(name string, tags map[string]string) {
	if sys := s.system(); sys != nil {
		_ = sys.Counter(name, 1, tags)
	}
}

// RecordGeneration counts a finished generation run.
func (s *TelemetrySink) RecordGeneration(category core.Category, success bool) {
	s.counter(GenerationRequestsTotal, map[string]string{
		"category": string(category),
		"status":   statusLabel(success),
	})
}

// RecordSlotFailure counts a provider-path or persistence failure.
func (s *TelemetrySink) RecordSlotFailure(category core.Category, kind core.Kind) {
	s.counter(GenerationSlotFailuresTotal, map[string]string{
		"category": string(category),
		"kind":     string(kind),
	})
}

// RecordRetry counts a retry scheduled after a retryable outcome.
func (s *TelemetrySink) RecordRetry(category core.Category, reason core.Kind) {
	s.counter(GenerationRetriesTotal, map[string]string{
		"category": string(category),
		"reason":   string(reason),
	})
}

// RecordFallback counts a slot filled by the placeholder artifact.
func (s *TelemetrySink) RecordFallback(category core.Category) {
	s.counter(GenerationFallbacksTotal, map[string]string{"category": string(category)})
}

// RecordAdmissionDenied counts a slot refused by the admission limiter.
func (s *TelemetrySink) RecordAdmissionDenied(category core.Category) {
	s.counter(AdmissionDeniedTotal, map[string]string{"category": string(category)})
}

// ObserveCallDuration records the latency of one provider call.
func (s *TelemetrySink) ObserveCallDuration(category core.Category, duration time.Duration) {
	if sys := s.system(); sys != nil {
		_ = sys.Histogram(GenerationCallDuration, duration, map[string]string{"category": string(category)})
	}
}

var _ core.MetricsSink = (*TelemetrySink)(nil)
