package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portraitforge/portraitforge/internal/core"
)

func TestLoggers(t *testing.T) {
	originalCLI, originalServer := CLILogger, ServerLogger
	t.Cleanup(func() {
		CLILogger, ServerLogger = originalCLI, originalServer
	})

	CLILogger, ServerLogger = nil, nil
	require.Nil(t, Current())

	InitCLILogger("portraitforge-test", true)
	require.NotNil(t, CLILogger)
	require.Same(t, CLILogger, Current())
	CLILogger.Debug("cli logger ready", zap.String("component", "test"))

	InitServerLogger("portraitforge-test", "warn", "portraitforge")
	require.NotNil(t, ServerLogger)
	require.Same(t, ServerLogger, Current())

	// Core packages accept the gofulmen logger through core.Logger.
	var logger core.Logger = Current()
	logger.Info("server logger ready", zap.Int("slots", 4))
}

func TestNewServerLoggerProfiles(t *testing.T) {
	for _, profile := range []string{"", "structured", "SIMPLE"} {
		logger, err := NewServerLogger(ServerLogOptions{
			Service:     "portraitforge-test",
			Level:       "debug",
			Namespace:   "portraitforge",
			Profile:     profile,
			Environment: "test",
		})
		require.NoError(t, err, profile)
		require.NotNil(t, logger, profile)
		logger.Debug("profile ready", zap.String("profile", profile))
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" info ":  "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"loud":    "INFO",
	}
	for input, want := range cases {
		require.Equal(t, want, parseLogLevel(input), input)
	}
}

func TestDisableTelemetry(t *testing.T) {
	DisableTelemetry()
}

func TestStopMetricsWithoutExporter(t *testing.T) {
	require.NoError(t, StopMetrics())
	require.Nil(t, TelemetrySystem)
	require.Zero(t, GetMetricsPort())
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9464")
	require.NoError(t, err)
	require.Equal(t, 9464, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}

func TestEmbeddedCrucible(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
	require.NotEmpty(t, version.Crucible)
	require.NotEmpty(t, crucible.GetVersionString())
}
