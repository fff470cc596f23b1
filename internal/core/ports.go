package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ImageSource loads subject images by reference.
type ImageSource interface {
	LoadBase64(ctx context.Context, ref string) (string, error)
	DetectMimeType(ctx context.Context, ref string) (string, error)
	PlaceholderBytes() []byte
}

// ArtifactSink persists generated artifacts and returns a URL or opaque reference.
type ArtifactSink interface {
	Store(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// ImageClient performs a single classified provider call.
type ImageClient interface {
	Generate(ctx context.Context, req *GenerationRequest) Outcome
}

// MetricsSink receives fire-and-forget generation metrics. Implementations must not block.
type MetricsSink interface {
	RecordGeneration(category Category, success bool)
	RecordSlotFailure(category Category, kind Kind)
	RecordRetry(category Category, reason Kind)
	RecordFallback(category Category)
	RecordAdmissionDenied(category Category)
	ObserveCallDuration(category Category, duration time.Duration)
}

// Logger is the logging surface used by core packages. Both *zap.Logger and the
// gofulmen logging.Logger satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) RecordGeneration(Category, bool)             {}
func (NopMetrics) RecordSlotFailure(Category, Kind)            {}
func (NopMetrics) RecordRetry(Category, Kind)                  {}
func (NopMetrics) RecordFallback(Category)                     {}
func (NopMetrics) RecordAdmissionDenied(Category)              {}
func (NopMetrics) ObserveCallDuration(Category, time.Duration) {}
