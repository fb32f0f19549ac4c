package metrics

import (
	"strconv"

	"github.com/postforge/postforge/internal/observability"
)

// RecordError counts an error envelope by code, mapped HTTP status and class.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem == nil {
		return
	}
	class := "client"
	if httpStatus >= 500 {
		class = "server"
	}
	_ = observability.TelemetrySystem.Counter(
		"errors_total",
		1,
		map[string]string{
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
			"class":       class,
		},
	)
}

// RecordPanic counts a recovered handler panic for the route pattern.
func RecordPanic(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter("panics_total", 1, map[string]string{"endpoint": endpoint})
	}
}
