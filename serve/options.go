package serve

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/toolsynth/internal/logging"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvAddr          = "TOOLSYNTH_ADDR"
	EnvToken         = "TOOLSYNTH_TOKEN"
	EnvLogLevel      = "TOOLSYNTH_LOG_LEVEL"
	EnvLogFormat     = "TOOLSYNTH_LOG_FORMAT"
	EnvValidateInput = "TOOLSYNTH_VALIDATE_INPUT"
)

// Defaults and fixed paths.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second

	MCPPath    = "/mcp"
	HealthPath = "/healthz"
)

// ErrConfiguration indicates invalid serving options.
var ErrConfiguration = errors.New("configuration error")

// Options configures a serving process.
type Options struct {
	// Name and Version identify the server to MCP clients.
	Name    string
	Version string

	// Addr is the listen address. Defaults to DefaultAddr.
	// Ignored when Listener is set.
	Addr string

	// Listener, if set, is served instead of listening on Addr.
	Listener net.Listener

	// Token enables bearer authentication on the MCP endpoint.
	// The health probe is never authenticated.
	Token string

	// ValidateInput checks call arguments against input schemas.
	ValidateInput bool

	// LogLevel and LogFormat, when LogLevel is set, reconfigure the default
	// logger before serving.
	LogLevel  string
	LogFormat string

	// ShutdownTimeout bounds graceful shutdown. Defaults to
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Logger is an optional logger for observability.
	Logger *slog.Logger
}

// OptionsFromEnv returns Options for a generated artifact, taking the
// listen address, token, and logging settings from the environment.
func OptionsFromEnv(name, version string) Options {
	opts := Options{
		Name:      name,
		Version:   version,
		Addr:      os.Getenv(EnvAddr),
		Token:     os.Getenv(EnvToken),
		LogLevel:  os.Getenv(EnvLogLevel),
		LogFormat: os.Getenv(EnvLogFormat),
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvValidateInput)); err == nil {
		opts.ValidateInput = v
	}
	return opts
}

// Validate checks that all fields hold usable values.
// Returns ErrConfiguration if any field is invalid.
func (o *Options) Validate() error {
	var invalid []string
	if o.ShutdownTimeout < 0 {
		invalid = append(invalid, "ShutdownTimeout")
	}
	if o.LogLevel != "" {
		if _, err := logging.ParseLevel(o.LogLevel); err != nil {
			invalid = append(invalid, "LogLevel")
		}
	}
	switch o.LogFormat {
	case "", "text", "json":
	default:
		invalid = append(invalid, "LogFormat")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid fields: %s",
			ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (o *Options) applyDefaults() {
	if o.Name == "" {
		o.Name = "toolsynth-artifact"
	}
	if o.Version == "" {
		o.Version = "v0.0.0"
	}
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.New("serve")
	}
}
