package build

import (
	"errors"
	"log/slog"

	"github.com/jonwraymond/toolsynth/crawl"
	"github.com/jonwraymond/toolsynth/internal/logging"
	"github.com/jonwraymond/toolsynth/synth"
)

// ErrAddrRequired is returned when no stage address is given.
var ErrAddrRequired = errors.New("build: stage address is required")

// ErrDirRequired is returned when Build has no output directory.
var ErrDirRequired = errors.New("build: output directory is required")

// Options configures a Builder.
type Options struct {
	// Crawl configures the metadata crawler. Zero values take the
	// crawler's defaults.
	Crawl crawl.Config

	// Synth configures synthesis. Zero values take the synthesizer's
	// defaults.
	Synth synth.Options

	// Logger is an optional logger for observability.
	Logger *slog.Logger
}

// validate checks the nested configurations.
func (o *Options) validate() error {
	if err := o.Crawl.Validate(); err != nil {
		return err
	}
	return o.Synth.Validate()
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = logging.New("build")
	}
	if o.Crawl.Logger == nil {
		o.Crawl.Logger = o.Logger.With("phase", "crawl")
	}
}
