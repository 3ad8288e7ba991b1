package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolsynth/build"
)

func newBuildCmd(root *rootFlags) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "build <addr>",
		Short: "Crawl a stage chain and write the synthesized artifact",
		Long: `Build crawls the stage at <addr> and every stage upstream of it, then
writes the synthesized program to the output directory. The directory is
replaced atomically; a failed build leaves it untouched.

Usage:
  toolsynth build http://localhost:7003/mcp -o ./weather
  toolsynth build http://localhost:7003/mcp -o ./weather --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := build.New(build.Options{
				Crawl: root.cfg.CrawlConfig(),
				Synth: root.cfg.SynthOptions(),
			})
			if err != nil {
				return err
			}
			res, err := b.Build(cmd.Context(), args[0], outDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %d files from %d stages to %s\n", len(res.Files), res.Stages, res.Dir)
			for _, p := range res.Problems {
				fmt.Fprintf(out, "warning: %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (required)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
