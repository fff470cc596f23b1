package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/observability"
)

// HTTP metric names
const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration_ms"
	HTTPRequestSizeBytes  = "http_request_size_bytes"
	HTTPResponseSizeBytes = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"
	HTTPRequestsInFlight  = "http_requests_in_flight"
)

var inFlight atomic.Int64

// responseWriter records the status code and body size written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// getEndpointPattern returns the chi route pattern, or a coarse bucket for
// unrouted paths so artifact and generation IDs never become label values.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if routePattern := rctx.RoutePattern(); routePattern != "" {
			return routePattern
		}
	}

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/health"):
		return "/health/*"
	case strings.HasPrefix(path, "/v1/artifacts/"):
		return "/v1/artifacts/{id}"
	case strings.HasPrefix(path, "/v1/generations"):
		return "/v1/generations"
	case strings.HasPrefix(path, "/admin/"):
		return "/admin/*"
	case path == "/version", path == "/metrics", path == "/":
		return path
	default:
		return "/unknown"
	}
}

type requestObservation struct {
	method       string
	path         string
	endpoint     string
	status       int
	duration     time.Duration
	requestSize  int64
	responseSize int64
	requestID    string
}

// RequestMetrics emits per-request telemetry and an access log line. It is a
// pass-through when telemetry is not initialized.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sys := observability.TelemetrySystem
		if sys == nil {
			next.ServeHTTP(w, r)
			return
		}

		_ = sys.Gauge(HTTPRequestsInFlight, float64(inFlight.Add(1)), nil)
		defer func() {
			_ = sys.Gauge(HTTPRequestsInFlight, float64(inFlight.Add(-1)), nil)
		}()

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		obs := requestObservation{
			method:       r.Method,
			path:         r.URL.Path,
			endpoint:     getEndpointPattern(r),
			status:       wrapped.statusCode,
			duration:     time.Since(start),
			requestSize:  max(r.ContentLength, 0),
			responseSize: wrapped.bytesWritten,
			requestID:    GetRequestID(r.Context()),
		}
		emitRequestMetrics(obs)
		logRequest(obs)
	})
}

func emitRequestMetrics(obs requestObservation) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	status := strconv.Itoa(obs.status)
	labels := map[string]string{"method": obs.method, "endpoint": obs.endpoint, "status": status}
	sizeLabels := map[string]string{"method": obs.method, "endpoint": obs.endpoint}

	_ = sys.Counter(HTTPRequestsTotal, 1, labels)
	_ = sys.Histogram(HTTPRequestDuration, obs.duration, labels)
	_ = sys.Gauge(HTTPRequestSizeBytes, float64(obs.requestSize), sizeLabels)
	_ = sys.Gauge(HTTPResponseSizeBytes, float64(obs.responseSize), sizeLabels)

	if obs.status >= http.StatusBadRequest {
		errorType := "client_error"
		if obs.status >= http.StatusInternalServerError {
			errorType = "server_error"
		}
		_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
			"method":     obs.method,
			"endpoint":   obs.endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}
}

// logRequest keeps probe and scrape traffic at debug level.
func logRequest(obs requestObservation) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("method", obs.method),
		zap.String("path", obs.path),
		zap.String("endpoint", obs.endpoint),
		zap.Int("status", obs.status),
		zap.Duration("duration", obs.duration),
		zap.Int64("request_size", obs.requestSize),
		zap.Int64("response_size", obs.responseSize),
		zap.String("request_id", obs.requestID),
	}

	switch {
	case obs.status >= http.StatusInternalServerError:
		logger.Warn("HTTP request failed", fields...)
	case obs.endpoint == "/metrics" || strings.HasPrefix(obs.endpoint, "/health"):
		logger.Debug("HTTP request completed", fields...)
	default:
		logger.Info("HTTP request completed", fields...)
	}
}
