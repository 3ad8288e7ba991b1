// Package config loads toolsynth settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolsynth/crawl"
	"github.com/jonwraymond/toolsynth/internal/logging"
	"github.com/jonwraymond/toolsynth/sandbox"
	"github.com/jonwraymond/toolsynth/serve"
	"github.com/jonwraymond/toolsynth/synth"
)

// ErrConfiguration indicates an unreadable or invalid configuration.
var ErrConfiguration = errors.New("configuration error")

// Config holds every tunable of the CLI.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Synth   SynthConfig   `yaml:"synth"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Serve   ServeConfig   `yaml:"serve"`
}

// LogConfig selects the default logger's level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// CrawlConfig bounds the metadata crawl.
type CrawlConfig struct {
	HopTimeout string `yaml:"hop_timeout"`
	MaxDepth   int    `yaml:"max_depth"`
}

// SynthConfig shapes the generated program.
type SynthConfig struct {
	Name           string `yaml:"name"`
	Module         string `yaml:"module"`
	GoVersion      string `yaml:"go_version"`
	RuntimeModule  string `yaml:"runtime_module"`
	RuntimeVersion string `yaml:"runtime_version"`
	Strict         bool   `yaml:"strict"`
}

// SandboxConfig sets the limits baked into generated artifacts.
type SandboxConfig struct {
	Timeout      string `yaml:"timeout"`
	MaxToolCalls int    `yaml:"max_tool_calls"`
}

// ServeConfig configures bundle serving.
type ServeConfig struct {
	Addr          string `yaml:"addr"`
	TokenEnv      string `yaml:"token_env"`
	ValidateInput bool   `yaml:"validate_input"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Crawl: CrawlConfig{HopTimeout: crawl.DefaultHopTimeout.String(), MaxDepth: crawl.DefaultMaxDepth},
		Synth: SynthConfig{
			Name:           synth.DefaultName,
			Module:         synth.DefaultModule,
			GoVersion:      synth.DefaultGoVersion,
			RuntimeModule:  synth.DefaultRuntimeModule,
			RuntimeVersion: synth.DefaultRuntimeVersion,
		},
		Sandbox: SandboxConfig{Timeout: sandbox.DefaultTimeout.String()},
		Serve:   ServeConfig{Addr: serve.DefaultAddr, TokenEnv: serve.EnvToken},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(serve.EnvAddr); v != "" {
		c.Serve.Addr = v
	}
	if v := os.Getenv(serve.EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(serve.EnvLogFormat); v != "" {
		c.Log.Format = v
	}
}

// Validate checks that all fields hold usable values.
// Returns ErrConfiguration if any field is invalid.
func (c *Config) Validate() error {
	var invalid []string

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid = append(invalid, "log.level")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		invalid = append(invalid, "log.format")
	}
	if d, err := parseDuration(c.Crawl.HopTimeout); err != nil || d < 0 {
		invalid = append(invalid, "crawl.hop_timeout")
	}
	if c.Crawl.MaxDepth < 0 {
		invalid = append(invalid, "crawl.max_depth")
	}
	if d, err := parseDuration(c.Sandbox.Timeout); err != nil || d < 0 {
		invalid = append(invalid, "sandbox.timeout")
	}
	if c.Sandbox.MaxToolCalls < 0 {
		invalid = append(invalid, "sandbox.max_tool_calls")
	}
	opts := c.SynthOptions()
	if err := opts.Validate(); err != nil {
		invalid = append(invalid, "synth")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid fields: %s",
			ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

// LogLevel returns the configured level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// CrawlConfig returns crawler settings. The dialer and logger are left to
// their defaults.
func (c *Config) CrawlConfig() crawl.Config {
	d, _ := parseDuration(c.Crawl.HopTimeout)
	return crawl.Config{HopTimeout: d, MaxDepth: c.Crawl.MaxDepth}
}

// SynthOptions returns synthesis options.
func (c *Config) SynthOptions() synth.Options {
	d, _ := parseDuration(c.Sandbox.Timeout)
	return synth.Options{
		Name:           c.Synth.Name,
		Module:         c.Synth.Module,
		GoVersion:      c.Synth.GoVersion,
		RuntimeModule:  c.Synth.RuntimeModule,
		RuntimeVersion: c.Synth.RuntimeVersion,
		SandboxTimeout: d,
		MaxToolCalls:   c.Sandbox.MaxToolCalls,
		Strict:         c.Synth.Strict,
	}
}

// ServeOptions returns serving options. The bearer token is read from the
// environment variable named by serve.token_env.
func (c *Config) ServeOptions(name, version string) serve.Options {
	opts := serve.Options{
		Name:          name,
		Version:       version,
		Addr:          c.Serve.Addr,
		ValidateInput: c.Serve.ValidateInput,
	}
	if c.Serve.TokenEnv != "" {
		opts.Token = os.Getenv(c.Serve.TokenEnv)
	}
	return opts
}

// parseDuration treats an empty string as zero.
func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
