package dispatch

import (
	"log/slog"
	"net/http"

	"github.com/jonwraymond/toolsynth/internal/logging"
	"github.com/jonwraymond/toolsynth/sandbox"
)

// Config controls fragment execution and input validation.
type Config struct {
	// Runner executes fragments. Defaults to a sandbox.Executor built from
	// the manifest's sandbox settings.
	Runner sandbox.Runner

	// HTTPClient is handed to the default runner for host.Fetch.
	HTTPClient *http.Client

	// ValidateInput checks call arguments against the exposed input schema
	// before any fragment runs.
	ValidateInput bool

	// Logger is an optional logger for observability.
	Logger *slog.Logger
}

// applyDefaults sets default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = logging.New("dispatch")
	}
}
