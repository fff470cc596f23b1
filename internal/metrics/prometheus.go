package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portraitforge/portraitforge/internal/core"
)

// PrometheusSink records generation metrics on a client_golang registry.
type PrometheusSink struct {
	Registry *prometheus.Registry

	requests     *prometheus.CounterVec
	slotFailures *prometheus.CounterVec
	retries      *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	denied       *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewPrometheusSink registers the generation collectors under namespace on a new registry.
func NewPrometheusSink(namespace string) *PrometheusSink {
	registry := prometheus.NewRegistry()
	s := &PrometheusSink{
		Registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      GenerationRequestsTotal,
			Help:      "Generation runs by category and quorum status.",
		}, []string{"category", "status"}),
		slotFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      GenerationSlotFailuresTotal,
			Help:      "Slot failures by category and error kind.",
		}, []string{"category", "kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      GenerationRetriesTotal,
			Help:      "Provider call retries by category and reason.",
		}, []string{"category", "reason"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      GenerationFallbacksTotal,
			Help:      "Slots filled with the placeholder artifact.",
		}, []string{"category"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      AdmissionDeniedTotal,
			Help:      "Slots refused by the admission limiter.",
		}, []string{"category"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      GenerationCallDuration,
			Help:      "Provider call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 60000},
		}, []string{"category"}),
	}

	registry.MustRegister(
		s.requests, s.slotFailures, s.retries, s.fallbacks, s.denied, s.callDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Handler serves the registry in the Prometheus exposition format.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

func (s *PrometheusSink) RecordGeneration(category core.Category, success bool) {
	s.requests.WithLabelValues(string(category), statusLabel(success)).Inc()
}

func (s *PrometheusSink) RecordSlotFailure(category core.Category, kind core.Kind) {
	s.slotFailures.WithLabelValues(string(category), string(kind)).Inc()
}

func (s *PrometheusSink) RecordRetry(category core.Category, reason core.Kind) {
	s.retries.WithLabelValues(string(category), string(reason)).Inc()
}

func (s *PrometheusSink) RecordFallback(category core.Category) {
	s.fallbacks.WithLabelValues(string(category)).Inc()
}

func (s *PrometheusSink) RecordAdmissionDenied(category core.Category) {
	s.denied.WithLabelValues(string(category)).Inc()
}

func (s *PrometheusSink) ObserveCallDuration(category core.Category, duration time.Duration) {
	s.callDuration.WithLabelValues(string(category)).Observe(float64(duration) / float64(time.Millisecond))
}

var _ core.MetricsSink = (*PrometheusSink)(nil)
