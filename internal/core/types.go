package core

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies a generated asset category.
type Category string

const (
	CategoryAgeProgression Category = "age-progression"
	CategoryAppearance     Category = "appearance"
)

// ParseCategory normalizes a user supplied category name.
func ParseCategory(value string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case string(CategoryAgeProgression), "ageprogression":
		return CategoryAgeProgression, nil
	case string(CategoryAppearance):
		return CategoryAppearance, nil
	default:
		return "", &Error{Kind: KindUnsupportedCategory, Message: fmt.Sprintf("unsupported category %q", value)}
	}
}

// Categories lists every supported category in a stable order.
func Categories() []Category {
	return []Category{CategoryAgeProgression, CategoryAppearance}
}

// GenerationRequest is a single provider call. One instance is built per slot and
// reused unchanged across that slot's retry attempts.
type GenerationRequest struct {
	SubjectRef    string
	MimeType      string
	ImageBase64   string
	Prompt        string
	SequenceIndex int
	Category      Category
}

// OutcomeKind tags a provider call outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeTerminal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one provider call.
//
// Success carries Artifact; RetryableFailure and TerminalFailure carry Err (a *Error
// whose Kind names the reason). SuggestedDelay is only meaningful for retryable outcomes.
type Outcome struct {
	Kind           OutcomeKind
	Artifact       []byte
	MimeType       string
	Err            error
	SuggestedDelay time.Duration

	// Placeholder is set when the artifact is a fallback substitute rather than
	// provider output.
	Placeholder bool
}

// Success builds a successful outcome.
func Success(artifact []byte, mimeType string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Artifact: artifact, MimeType: mimeType}
}

// Retryable builds a retryable failure outcome.
func Retryable(err error, suggestedDelay time.Duration) Outcome {
	return Outcome{Kind: OutcomeRetryable, Err: err, SuggestedDelay: suggestedDelay}
}

// Terminal builds a terminal failure outcome.
func Terminal(err error) Outcome {
	return Outcome{Kind: OutcomeTerminal, Err: err}
}

// Reason returns the failure kind of the outcome, or "" for successes.
func (o Outcome) Reason() Kind {
	if o.Kind == OutcomeSuccess {
		return ""
	}
	return KindOf(o.Err)
}

// Artifact is a persisted slot artifact.
type Artifact struct {
	Index       int    `json:"index"`
	Ref         string `json:"ref"`
	ContentType string `json:"content_type"`
	Fallback    bool   `json:"fallback,omitempty"`
	Attempts    int    `json:"attempts"`
}

// Retries returns the number of attempts beyond the first.
func (a Artifact) Retries() int {
	if a.Attempts <= 1 {
		return 0
	}
	return a.Attempts - 1
}

// SlotResult is the resolution of one requested slot: exactly one of Artifact or Err is set.
type SlotResult struct {
	Index    int
	Artifact *Artifact
	Err      error

	// Cause is the provider-path failure that triggered a fallback, if any.
	Cause error
}

// OK reports whether the slot produced an artifact.
func (s SlotResult) OK() bool {
	return s.Err == nil && s.Artifact != nil
}

// Report is the ordered result of a generation run.
type Report struct {
	Category    Category
	SubjectRef  string
	Slots       []SlotResult
	Required    int
	RequestedAt time.Time
	CompletedAt time.Time
}

// Artifacts returns the present artifacts ordered by sequence index.
func (r *Report) Artifacts() []Artifact {
	if r == nil {
		return nil
	}
	result := make([]Artifact, 0, len(r.Slots))
	for _, slot := range r.Slots {
		if slot.OK() {
			result = append(result, *slot.Artifact)
		}
	}
	return result
}

// Succeeded counts slots that produced an artifact.
func (r *Report) Succeeded() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, slot := range r.Slots {
		if slot.OK() {
			count++
		}
	}
	return count
}
