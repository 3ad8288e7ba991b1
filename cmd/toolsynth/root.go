package main

import (
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolsynth/config"
	"github.com/jonwraymond/toolsynth/internal/logging"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	strict     bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "toolsynth",
		Short: "Synthesize a standalone MCP server from a pipeline of stages",
		Long: `toolsynth crawls a chain of MCP pipeline stages back to its root and
compiles the collected metadata into one self-contained Go program that
serves the chain's exposed tool surface.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.load(cmd)
		},
	}
	cmd.Version = version

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	pf.BoolVar(&flags.strict, "strict", false, "Fail on cross-stage reference problems instead of deferring them")

	cmd.AddCommand(newBuildCmd(flags))
	cmd.AddCommand(newInspectCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	return cmd
}

// load reads the configuration, applies flag overrides and configures the
// default logger.
func (f *rootFlags) load(cmd *cobra.Command) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.strict {
		cfg.Synth.Strict = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Init(cfg.LogLevel(), cfg.Log.Format, cmd.ErrOrStderr())
	f.cfg = cfg
	return nil
}
