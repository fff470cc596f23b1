package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/core"
)

// PromptRenderer renders a category prompt by slug.
type PromptRenderer interface {
	Render(slug string, vars map[string]string) (string, error)
}

// AdmissionLimits are the budgets passed to the shared AdmissionLimiter.
type AdmissionLimits struct {
	PerMinute int
	PerDay    int
}

// Orchestrator runs category strategies against the image provider.
type Orchestrator struct {
	Source  core.ImageSource
	Sink    core.ArtifactSink
	Client  core.ImageClient
	Prompts PromptRenderer

	Limiter *AdmissionLimiter
	Limits  AdmissionLimits
	Retry   RetryPolicy
	Pool    *Pool

	Metrics core.MetricsSink
	Logger  core.Logger

	// StrictQuorum excludes fallback-substituted slots from the quorum count.
	StrictQuorum bool

	// PromptVars are passed to every prompt render.
	PromptVars map[string]string

	Clock func() time.Time
}

// Generate returns the ordered present artifacts for subjectRef, or an error when
// the category quorum is not met.
func (o *Orchestrator) Generate(ctx context.Context, subjectRef string, category core.Category) ([]core.Artifact, error) {
	report, err := o.Run(ctx, subjectRef, category)
	if err != nil {
		return nil, err
	}
	return report.Artifacts(), nil
}

// Run resolves every slot of the category strategy and applies quorum. The report is
// returned alongside an *core.InsufficientArtifactsError when quorum is missed; it is
// nil for fail-fast errors raised before dispatch.
func (o *Orchestrator) Run(ctx context.Context, subjectRef string, category core.Category) (*core.Report, error) {
	if o == nil {
		return nil, errors.New("orchestrator not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	strategy, err := StrategyFor(category)
	if err != nil {
		return nil, err
	}

	subjectRef = strings.TrimSpace(subjectRef)
	mimeType, payload, err := o.loadSubject(ctx, subjectRef)
	if err != nil {
		o.metrics().RecordSlotFailure(category, core.KindOf(err))
		return nil, err
	}

	prompt, err := o.renderPrompt(strategy)
	if err != nil {
		return nil, err
	}

	report := &core.Report{
		Category:    category,
		SubjectRef:  subjectRef,
		Required:    strategy.Quorum,
		RequestedAt: o.now(),
	}

	requests := strategy.Requests(subjectRef, mimeType, payload, prompt)
	slots := make([]core.SlotResult, len(requests))

	o.logger().Info("Dispatching generation",
		zap.String("category", string(category)),
		zap.String("subject", subjectRef),
		zap.Int("slots", len(requests)),
		zap.Int("quorum", strategy.Quorum))

	// Dispatched slots run to completion regardless of the caller's cancellation.
	slotCtx := context.WithoutCancel(ctx)
	panics := o.Pool.Run(slotCtx, len(requests), func(ctx context.Context, index int) {
		slots[index] = o.runSlot(ctx, strategy, requests[index])
	})
	for index, err := range panics {
		if err == nil {
			continue
		}
		o.logger().Error("Slot aborted", zap.Int("slot", index), zap.Error(err))
		o.metrics().RecordSlotFailure(category, core.KindOf(err))
		slots[index] = core.SlotResult{Index: index, Err: err}
	}

	report.Slots = slots
	report.CompletedAt = o.now()

	succeeded := o.countTowardQuorum(slots)
	if succeeded < strategy.Quorum {
		failures := make([]core.SlotError, 0, len(slots)-succeeded)
		for _, slot := range slots {
			if slot.Err != nil {
				failures = append(failures, core.SlotError{Index: slot.Index, Err: slot.Err})
			}
		}
		o.metrics().RecordGeneration(category, false)
		o.logger().Warn("Generation below quorum",
			zap.String("category", string(category)),
			zap.Int("succeeded", succeeded),
			zap.Int("required", strategy.Quorum))
		return report, &core.InsufficientArtifactsError{
			Category:  category,
			Required:  strategy.Quorum,
			Succeeded: succeeded,
			Slots:     failures,
		}
	}

	o.metrics().RecordGeneration(category, true)
	o.logger().Info("Generation complete",
		zap.String("category", string(category)),
		zap.Int("succeeded", succeeded),
		zap.Duration("elapsed", report.CompletedAt.Sub(report.RequestedAt)))
	return report, nil
}

func (o *Orchestrator) loadSubject(ctx context.Context, subjectRef string) (string, string, error) {
	if subjectRef == "" {
		return "", "", core.NewError(core.KindMissingSourceImage, "subject reference is required", nil)
	}
	if o.Source == nil {
		return "", "", core.NewError(core.KindMissingSourceImage, "image source not configured", nil)
	}

	mimeType, err := o.Source.DetectMimeType(ctx, subjectRef)
	if err != nil {
		return "", "", missingSource(subjectRef, err)
	}
	payload, err := o.Source.LoadBase64(ctx, subjectRef)
	if err != nil {
		return "", "", missingSource(subjectRef, err)
	}
	if strings.TrimSpace(payload) == "" {
		return "", "", missingSource(subjectRef, nil)
	}
	return mimeType, payload, nil
}

func missingSource(subjectRef string, err error) error {
	if errors.Is(err, core.ErrMissingSourceImage) {
		return err
	}
	return core.NewError(core.KindMissingSourceImage,
		fmt.Sprintf("subject %q has no usable source image", subjectRef), err)
}

func (o *Orchestrator) renderPrompt(strategy Strategy) (string, error) {
	if o.Prompts == nil {
		return "", fmt.Errorf("prompt renderer not configured")
	}
	prompt, err := o.Prompts.Render(strategy.PromptSlug, o.PromptVars)
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", strategy.Category, err)
	}
	return prompt, nil
}

// runSlot drives admission, the retried provider call, fallback and persistence for one slot.
func (o *Orchestrator) runSlot(ctx context.Context, strategy Strategy, req *core.GenerationRequest) core.SlotResult {
	category := strategy.Category
	result := core.SlotResult{Index: req.SequenceIndex}
	log := o.logger()

	var (
		data        []byte
		contentType string
		attempts    int
		cause       error
	)

	if o.Limiter.TryAcquire(o.Limits.PerMinute, o.Limits.PerDay) {
		outcome, made := o.call(ctx, category, req)
		attempts = made
		switch {
		case outcome.Kind == core.OutcomeSuccess && outcome.Placeholder:
			cause = core.NewError(core.KindProviderNotConfigured, "provider credentials not configured", nil)
			data, contentType = outcome.Artifact, outcome.MimeType
		case outcome.Kind == core.OutcomeSuccess:
			data, contentType = outcome.Artifact, outcome.MimeType
		default:
			cause = outcome.Err
			o.metrics().RecordSlotFailure(category, core.KindOf(cause))
		}
	} else {
		wait := o.Limiter.EstimatedWait(o.Limits.PerMinute)
		cause = core.NewError(core.KindAdmissionDenied,
			fmt.Sprintf("admission denied, estimated wait %s", wait.Round(time.Second)), nil)
		o.metrics().RecordAdmissionDenied(category)
	}

	if cause != nil {
		result.Cause = cause
		log.Warn("Slot falling back to placeholder",
			zap.String("category", string(category)),
			zap.Int("slot", req.SequenceIndex),
			zap.Error(cause))
		if o.StrictQuorum {
			result.Err = cause
			return result
		}
		if len(data) == 0 {
			data, contentType = o.placeholder()
		}
		o.metrics().RecordFallback(category)
	}

	if contentType == "" {
		contentType = "image/png"
	}

	filename := artifactFilename(category, req.SequenceIndex, contentType)
	ref, err := o.store(ctx, data, filename, contentType)
	if err != nil {
		result.Err = core.NewError(core.KindStoreFailed, fmt.Sprintf("store slot %d artifact", req.SequenceIndex), err)
		o.metrics().RecordSlotFailure(category, core.KindStoreFailed)
		log.Error("Artifact store failed",
			zap.String("category", string(category)),
			zap.Int("slot", req.SequenceIndex),
			zap.Error(err))
		return result
	}

	result.Artifact = &core.Artifact{
		Index:       req.SequenceIndex,
		Ref:         ref,
		ContentType: contentType,
		Fallback:    cause != nil,
		Attempts:    attempts,
	}
	log.Debug("Slot resolved",
		zap.String("category", string(category)),
		zap.Int("slot", req.SequenceIndex),
		zap.Int("attempts", attempts),
		zap.Bool("fallback", cause != nil))
	return result
}

func (o *Orchestrator) call(ctx context.Context, category core.Category, req *core.GenerationRequest) (core.Outcome, int) {
	if o.Client == nil {
		return core.Outcome{Kind: core.OutcomeSuccess, Placeholder: true}, 0
	}

	policy := o.Retry
	policy.OnRetry = func(attempt int, outcome core.Outcome, wait time.Duration) {
		o.metrics().RecordRetry(category, outcome.Reason())
		o.logger().Info("Retrying provider call",
			zap.String("category", string(category)),
			zap.Int("slot", req.SequenceIndex),
			zap.Int("attempt", attempt),
			zap.String("reason", string(outcome.Reason())),
			zap.Duration("wait", wait))
	}

	return policy.Execute(ctx, func(ctx context.Context, attempt int) core.Outcome {
		start := time.Now()
		outcome := o.Client.Generate(ctx, req)
		o.metrics().ObserveCallDuration(category, time.Since(start))
		return outcome
	})
}

func (o *Orchestrator) store(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if o.Sink == nil {
		return "", errors.New("artifact sink not configured")
	}
	if len(data) == 0 {
		return "", errors.New("artifact is empty")
	}
	return o.Sink.Store(ctx, data, filename, contentType)
}

func (o *Orchestrator) placeholder() ([]byte, string) {
	if o.Source == nil {
		return nil, ""
	}
	return o.Source.PlaceholderBytes(), "image/png"
}

func (o *Orchestrator) countTowardQuorum(slots []core.SlotResult) int {
	count := 0
	for _, slot := range slots {
		if !slot.OK() {
			continue
		}
		if o.StrictQuorum && slot.Artifact.Fallback {
			continue
		}
		count++
	}
	return count
}

func (o *Orchestrator) metrics() core.MetricsSink {
	if o == nil || o.Metrics == nil {
		return core.NopMetrics{}
	}
	return o.Metrics
}

func (o *Orchestrator) logger() core.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

func artifactFilename(category core.Category, index int, contentType string) string {
	return fmt.Sprintf("%s-%s-%d%s", category, uuid.NewString(), index, extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
