package core

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies generation failures.
type Kind string

const (
	KindMissingSourceImage    Kind = "missing_source_image"
	KindQuotaExceeded         Kind = "quota_exceeded"
	KindContentFiltered       Kind = "content_filtered"
	KindEmptyResponse         Kind = "empty_response"
	KindNetworkOrProtocol     Kind = "network_or_protocol_error"
	KindAdmissionDenied       Kind = "admission_denied"
	KindStoreFailed           Kind = "store_failed"
	KindRetriesExhausted      Kind = "retries_exhausted"
	KindInsufficientArtifacts Kind = "insufficient_artifacts"
	KindUnsupportedCategory   Kind = "unsupported_category"
	KindProviderNotConfigured Kind = "provider_not_configured"
	KindSlotPanic             Kind = "slot_panic"
	KindUnknown               Kind = "unknown"
)

// Sentinels for errors.Is matching. Matching compares Kind only.
var (
	ErrMissingSourceImage    = &Error{Kind: KindMissingSourceImage}
	ErrQuotaExceeded         = &Error{Kind: KindQuotaExceeded}
	ErrContentFiltered       = &Error{Kind: KindContentFiltered}
	ErrEmptyResponse         = &Error{Kind: KindEmptyResponse}
	ErrNetworkOrProtocol     = &Error{Kind: KindNetworkOrProtocol}
	ErrAdmissionDenied       = &Error{Kind: KindAdmissionDenied}
	ErrStoreFailed           = &Error{Kind: KindStoreFailed}
	ErrRetriesExhausted      = &Error{Kind: KindRetriesExhausted}
	ErrInsufficientArtifacts = &Error{Kind: KindInsufficientArtifacts}
	ErrUnsupportedCategory   = &Error{Kind: KindUnsupportedCategory}
	ErrProviderNotConfigured = &Error{Kind: KindProviderNotConfigured}
	ErrSlotPanic             = &Error{Kind: KindSlotPanic}
)

// Error is a typed generation failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds an error of the given kind wrapping err.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "generation error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.ReplaceAll(string(e.Kind), "_", " ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the outermost generation error kind found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var insufficient *InsufficientArtifactsError
	if errors.As(err, &insufficient) {
		return KindInsufficientArtifacts
	}
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.Kind
	}
	return KindUnknown
}

// SlotError pairs a slot index with its failure.
type SlotError struct {
	Index int
	Err   error
}

// InsufficientArtifactsError is returned when fewer slots succeeded than the category quorum.
type InsufficientArtifactsError struct {
	Category  Category
	Required  int
	Succeeded int
	Slots     []SlotError
}

func (e *InsufficientArtifactsError) Error() string {
	if e == nil {
		return "insufficient artifacts"
	}
	parts := make([]string, 0, len(e.Slots))
	for _, slot := range e.Slots {
		parts = append(parts, fmt.Sprintf("slot %d: %v", slot.Index, slot.Err))
	}
	return fmt.Sprintf("insufficient artifacts for %s: %d of %d required succeeded [%s]",
		e.Category, e.Succeeded, e.Required, strings.Join(parts, "; "))
}

// Messages returns the per-slot error descriptions in slot order.
func (e *InsufficientArtifactsError) Messages() []string {
	if e == nil {
		return nil
	}
	result := make([]string, 0, len(e.Slots))
	for _, slot := range e.Slots {
		result = append(result, slot.Err.Error())
	}
	return result
}

// Unwrap exposes the constituent slot errors.
func (e *InsufficientArtifactsError) Unwrap() []error {
	if e == nil {
		return nil
	}
	result := make([]error, 0, len(e.Slots))
	for _, slot := range e.Slots {
		result = append(result, slot.Err)
	}
	return result
}

// Is matches ErrInsufficientArtifacts.
func (e *InsufficientArtifactsError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && t.Kind == KindInsufficientArtifacts
}
