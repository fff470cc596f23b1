package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/config"
	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/core/engine"
	"github.com/portraitforge/portraitforge/internal/core/store"
	"github.com/portraitforge/portraitforge/internal/metrics"
	"github.com/portraitforge/portraitforge/internal/observability"
	"github.com/portraitforge/portraitforge/internal/prompt"
	"github.com/portraitforge/portraitforge/internal/provider/gemini"
	"github.com/portraitforge/portraitforge/internal/sink"
	"github.com/portraitforge/portraitforge/internal/source"
)

// generationRuntime holds the collaborators shared by every generation run in this process.
type generationRuntime struct {
	cfg          *config.Config
	store        *store.Store
	client       *gemini.Client
	limiter      *engine.AdmissionLimiter
	orchestrator *engine.Orchestrator

	// metricsHandler is set when the prometheus backend owns /metrics.
	metricsHandler http.Handler
}

// buildRuntime opens the store and assembles an Orchestrator from cfg.
func buildRuntime(ctx context.Context, cfg *config.Config, logger core.Logger) (*generationRuntime, error) {
	db, err := openStoreWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db.PublicBaseURL = strings.TrimRight(cfg.Artifacts.PublicBaseURL, "/")

	prompts, err := prompt.NewRegistryWithOverrides(cfg.Generation.PromptsDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	subjects := source.NewDir(cfg.Subjects.Root, cfg.Subjects.MaxDimension)

	client := gemini.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Model)
	client.Timeout = cfg.Provider.Timeout
	client.Placeholder = subjects.PlaceholderBytes

	var artifacts core.ArtifactSink = db
	if cfg.Artifacts.Sink == "dir" {
		artifacts = sink.NewDir(cfg.Artifacts.Dir, cfg.Artifacts.PublicBaseURL)
	}

	rt := &generationRuntime{
		cfg:     cfg,
		store:   db,
		client:  client,
		limiter: engine.NewAdmissionLimiter(),
	}

	rt.orchestrator = &engine.Orchestrator{
		Source:  subjects,
		Sink:    artifacts,
		Client:  client,
		Prompts: prompts,
		Limiter: rt.limiter,
		Limits: engine.AdmissionLimits{
			PerMinute: cfg.RateLimit.PerMinute,
			PerDay:    cfg.RateLimit.PerDay,
		},
		Retry: engine.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxDelay:       cfg.Retry.MaxDelay,
		},
		Pool:         engine.NewPool(cfg.Generation.Workers),
		Metrics:      rt.metricsSink(),
		Logger:       logger,
		StrictQuorum: cfg.Generation.StrictQuorum,
		PromptVars:   cfg.Generation.PromptVars(),
	}

	if !client.Configured() && logger != nil {
		logger.Warn("No provider API key configured; every slot will receive the placeholder image",
			zap.String("model", client.Model))
	}

	return rt, nil
}

func (rt *generationRuntime) metricsSink() core.MetricsSink {
	switch rt.cfg.Metrics.Backend {
	case "none":
		return core.NopMetrics{}
	case "prometheus":
		namespace := "portraitforge"
		if identity := GetAppIdentity(); identity != nil {
			namespace = identity.TelemetryNamespace()
		}
		sink := metrics.NewPrometheusSink(namespace)
		rt.metricsHandler = sink.Handler()
		return sink
	default:
		return metrics.NewTelemetrySink(nil)
	}
}

func (rt *generationRuntime) Close() error {
	if rt == nil || rt.store == nil {
		return nil
	}
	return rt.store.Close()
}

// record saves the audit entry for a finished run. Failures are logged only.
func (rt *generationRuntime) record(ctx context.Context, subject string, category core.Category, report *core.Report, runErr error) store.GenerationRecord {
	record := store.NewGenerationRecord(report, runErr)
	if report == nil {
		record.Category = category
		record.SubjectRef = subject
	}
	err := rt.store.SaveGeneration(context.WithoutCancel(ctx), record)
	if logger := observability.Current(); err != nil && logger != nil {
		logger.Warn("Failed to record generation",
			zap.String("generation_id", record.ID),
			zap.Error(err))
	}
	return record
}
