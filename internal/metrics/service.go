package metrics

import (
	"strconv"
	"time"

	"github.com/portraitforge/portraitforge/internal/observability"
)

// Service-level metric names, emitted through the global telemetry system.
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"

	ArtifactsServedTotal = "artifacts_served_total"
	AdmissionResetsTotal = "admission_resets_total"
)

// The helpers below are no-ops until serve installs telemetry.

func count(name string, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, tags)
	}
}

func observe(name string, d time.Duration, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, tags)
	}
}

func set(name string, value float64, tags map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, tags)
	}
}

func errorClass(status int) string {
	if status >= 500 {
		return "server"
	}
	return "client"
}

// RecordError counts an error response by envelope code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
		"class":       errorClass(httpStatus),
	})
}

// RecordErrorByEndpoint counts an error response by route pattern.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpointName, map[string]string{"endpoint": endpoint, "error_code": errorCode})
}

func RecordPanic() {
	count(PanicsTotalName, nil)
}

// RecordHealthCheck records one health check run.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	count(HealthCheckTotal, map[string]string{"check": checkName, "status": status})
	observe(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	set(ServerStartTime, float64(timestamp), nil)
}

// RecordArtifactServed counts artifact downloads by whether the id resolved.
func RecordArtifactServed(found bool) {
	status := "found"
	if !found {
		status = "not_found"
	}
	count(ArtifactsServedTotal, map[string]string{"status": status})
}

func RecordAdmissionReset() {
	count(AdmissionResetsTotal, nil)
}
