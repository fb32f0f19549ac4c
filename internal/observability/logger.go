package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger backs the one-shot commands.
	CLILogger *logging.Logger

	// ServerLogger backs serve and every HTTP component it wires.
	ServerLogger *logging.Logger
)

// ServerLogOptions shapes the structured logger used by serve.
type ServerLogOptions struct {
	Service     string
	Level       string
	Format      string // json or console
	Environment string
	Namespace   string
}

// InitCLILogger installs a SIMPLE profile logger; verbose lowers it to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatalStderr(foundry.ExitConfigInvalid, "cli logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs a STRUCTURED profile logger writing to stderr
// with request correlation enabled.
func InitServerLogger(opts ServerLogOptions) {
	fields := map[string]any{}
	if opts.Namespace != "" {
		fields["namespace"] = opts.Namespace
	}

	env := opts.Environment
	if env == "" {
		env = "local"
	}

	logger, err := logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: normalizeLevel(opts.Level),
		Service:      opts.Service,
		Environment:  env,
		StaticFields: fields,
		EnableCaller: true,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  sinkFormat(opts.Format),
				Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
			},
		},
	})
	if err != nil {
		fatalStderr(foundry.ExitConfigInvalid, "server logger", err)
	}
	ServerLogger = logger
}

func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "TRACE", "DEBUG", "WARN", "ERROR":
		return l
	case "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}

func sinkFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

// fatalStderr exits when no logger could be built to report through.
func fatalStderr(code foundry.ExitCode, what string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: failed to initialize %s: %v\n", what, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}
