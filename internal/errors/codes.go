package errors

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
)

// Envelope codes used by the HTTP surface and the CLI.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInternal            = "INTERNAL_ERROR"
	CodeDatabase            = "DATABASE_ERROR"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeTimeout             = "TIMEOUT"
	CodeQuorumFailed        = "GENERATION_QUORUM_FAILED"
	CodeSourceImageMissing  = "SOURCE_IMAGE_MISSING"
	CodeUnsupportedCategory = "UNSUPPORTED_CATEGORY"
)

var statusByCode = map[string]int{
	CodeInvalidInput:        http.StatusBadRequest,
	CodeValidationFailed:    http.StatusBadRequest,
	CodeUnsupportedCategory: http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	"FORBIDDEN":             http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeMethodNotAllowed:    http.StatusMethodNotAllowed,
	"CONFLICT":              http.StatusConflict,
	CodeSourceImageMissing:  http.StatusUnprocessableEntity,
	CodeExternalService:     http.StatusBadGateway,
	CodeQuorumFailed:        http.StatusBadGateway,
	CodeServiceUnavailable:  http.StatusServiceUnavailable,
	CodeTimeout:             http.StatusGatewayTimeout,
}

// HTTPStatusFromCode maps an envelope code to its HTTP status. Unknown codes are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HTTPStatusFromEnvelope is HTTPStatusFromCode for an envelope; nil is 500.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// withDefaultSeverity marks server-side failures high and auth/unprocessable failures
// medium when the envelope carries no severity yet.
func withDefaultSeverity(envelope *errors.ErrorEnvelope, status int) *errors.ErrorEnvelope {
	if envelope == nil || envelope.Severity != "" {
		return envelope
	}
	var (
		updated *errors.ErrorEnvelope
		err     error
	)
	switch {
	case status >= http.StatusInternalServerError:
		updated, err = envelope.WithSeverity(errors.SeverityHigh)
	case status == http.StatusUnauthorized, status == http.StatusUnprocessableEntity:
		updated, err = envelope.WithSeverity(errors.SeverityMedium)
	default:
		return envelope
	}
	if err != nil {
		return envelope
	}
	return updated
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewUnauthorizedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnauthorized, message)
}

func NewValidationError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeValidationFailed, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewExternalServiceError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeExternalService, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}
