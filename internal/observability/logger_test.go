package observability_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postforge/postforge/internal/observability"
)

func TestInitLoggers(t *testing.T) {
	t.Run("CLI", func(t *testing.T) {
		observability.InitCLILogger("postforge-test", true)
		require.NotNil(t, observability.CLILogger)
		observability.CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))
	})

	t.Run("Server", func(t *testing.T) {
		observability.InitServerLogger(observability.ServerLogOptions{
			Service:   "postforge-test",
			Level:     "warn",
			Format:    "console",
			Namespace: "postforge",
		})
		require.NotNil(t, observability.ServerLogger)
		observability.ServerLogger.Warn("server logger ready", zap.String("component", "test"))
	})
}

func TestMetricsPortDefaultsToZero(t *testing.T) {
	require.Equal(t, 0, observability.GetMetricsPort())
	require.Nil(t, observability.TelemetrySystem)
}
