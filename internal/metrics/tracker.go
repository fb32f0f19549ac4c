package metrics

import (
	"time"

	"github.com/postforge/postforge/internal/observability"
)

// Metric names
const (
	TrackerOperationsTotal = "tracker_operations_total"
	CredentialLookupsTotal = "tracker_credential_lookups_total"
	CountdownsActive       = "tracker_countdowns_active"
	XAPIRequestsTotal      = "xapi_requests_total"
	XAPIRequestDuration    = "xapi_request_duration_ms"
	ServerStartTime        = "app_server_start_time_seconds"
)

// RecordTrackerOperation counts a tracker read or write.
func RecordTrackerOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			TrackerOperationsTotal,
			1,
			map[string]string{
				"operation": operation,
				"status":    status,
			},
		)
	}
}

// RecordCredentialLookup counts credential cache hits and misses.
func RecordCredentialLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CredentialLookupsTotal,
			1,
			map[string]string{"result": result},
		)
	}
}

// SetActiveCountdowns reports how many countdown streams are open.
func SetActiveCountdowns(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			CountdownsActive,
			float64(count),
			nil,
		)
	}
}

// RecordXAPIRequest records an outbound call to the backend X endpoints.
func RecordXAPIRequest(endpoint string, outcome string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		labels := map[string]string{
			"endpoint": endpoint,
			"outcome":  outcome,
		}
		_ = observability.TelemetrySystem.Counter(XAPIRequestsTotal, 1, labels)
		_ = observability.TelemetrySystem.Histogram(XAPIRequestDuration, duration, labels)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
