package integration

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postforge/postforge/internal/kv"
	"github.com/postforge/postforge/internal/observability"
	"github.com/postforge/postforge/internal/server"
	"github.com/postforge/postforge/internal/tracker"
)

func newMemoryServer(t *testing.T) (*server.Server, *tracker.Tracker) {
	t.Helper()
	tr := tracker.New(kv.NewMemory(), tracker.WithNamespace("it"))
	t.Cleanup(tr.Close)
	return server.New("127.0.0.1", 0, server.Options{Tracker: tr, PollInterval: 10 * time.Millisecond}), tr
}

func scrape(t *testing.T, client *http.Client, baseURL string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	return resp, string(body)
}

func TestMetricsEndpoint_TrackerTraffic(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLogOptions{Service: "test", Level: "info"})
	initMetricsOrSkip(t)

	srv, _ := newMemoryServer(t)
	baseURL := serve(t, srv)
	client := &http.Client{Timeout: 5 * time.Second}

	const numWorkers = 8
	const perWorker = 6

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				var req *http.Request
				switch j % 3 {
				case 0:
					req, _ = http.NewRequest(http.MethodPut, baseURL+"/v1/limits/x_api", strings.NewReader(`{"duration_ms":60000}`))
				case 1:
					req, _ = http.NewRequest(http.MethodGet, baseURL+"/v1/limits/x_api", nil)
				default:
					req, _ = http.NewRequest(http.MethodGet, baseURL+"/v1/credentials/x_auth", nil)
				}
				resp, err := client.Do(req)
				if err == nil {
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	resp, metricsContent := scrape(t, client, baseURL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, metricsContent, "http_requests_total", "Should have HTTP request metrics")
	assert.Contains(t, metricsContent, "tracker_operations_total", "Should have tracker write metrics")
	assert.Contains(t, metricsContent, "tracker_credential_lookups_total", "Should have credential lookup metrics")
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLogOptions{Service: "test", Level: "info"})
	initMetricsOrSkip(t)

	srv, _ := newMemoryServer(t)
	baseURL := serve(t, srv)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/v1/limits/x_api")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, metricsContent := scrape(t, client, baseURL)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "text/plain; version=0.0.4"),
		"Expected Prometheus content type, got: %s", contentType)

	metricLines := 0
	for _, line := range strings.Split(strings.TrimSpace(metricsContent), "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(line, "{") {
			require.GreaterOrEqual(t, len(strings.Fields(line)), 2, "malformed metric line: %s", line)
		}
		metricLines++
	}
	assert.Greater(t, metricLines, 0, "Should have actual metric values")
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLogOptions{Service: "test", Level: "info"})

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	t.Setenv("POSTFORGE_METRICS_ENABLED", "false")

	srv, _ := newMemoryServer(t)
	baseURL := serve(t, srv)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/v1/limits/x_api")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(baseURL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
