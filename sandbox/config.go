package sandbox

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/toolsynth/internal/logging"
)

// DefaultTimeout bounds a fragment run when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Config holds the configuration for an Executor.
type Config struct {
	// Timeout is the wall-clock bound for every fragment run.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxToolCalls limits host.CallTool invocations per orchestration run.
	// Zero means unlimited.
	MaxToolCalls int

	// HTTPClient performs host.Fetch requests. Defaults to a client with
	// the run's timeout.
	HTTPClient *http.Client

	// Logger is an optional logger for observability.
	Logger *slog.Logger
}

// Validate checks that all fields hold usable values.
// Returns ErrConfiguration if any field is invalid.
func (c *Config) Validate() error {
	var invalid []string

	if c.Timeout < 0 {
		invalid = append(invalid, "Timeout")
	}
	if c.MaxToolCalls < 0 {
		invalid = append(invalid, "MaxToolCalls")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid fields: %s",
			ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = logging.New("sandbox")
	}
}
