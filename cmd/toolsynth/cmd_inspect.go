package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolsynth/build"
	"github.com/jonwraymond/toolsynth/catalog"
	"github.com/jonwraymond/toolsynth/synth"
)

func newInspectCmd(root *rootFlags) *cobra.Command {
	var (
		query string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "inspect <addr>",
		Short: "Show a stage chain and the tools an artifact would expose",
		Long: `Inspect crawls the stage at <addr> and prints the chain, root first,
followed by the exposed tool listing and any reference problems. Nothing is
written to disk.

With --search the exposed tools are ranked against a query instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := build.New(build.Options{
				Crawl: root.cfg.CrawlConfig(),
				Synth: root.cfg.SynthOptions(),
			})
			if err != nil {
				return err
			}
			report, err := b.Inspect(cmd.Context(), args[0])
			if err != nil && (report == nil || !errors.Is(err, synth.ErrValidation)) {
				return err
			}

			out := cmd.OutOrStdout()
			if query != "" {
				if serr := printSearch(cmd, out, report, query, limit); serr != nil {
					return serr
				}
				return err
			}
			printReport(out, report)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&query, "search", "", "Rank exposed tools against a query")
	f.IntVar(&limit, "limit", 10, "Maximum number of search results")
	return cmd
}

func printReport(out io.Writer, report *build.Report) {
	fmt.Fprintln(out, "STAGES")
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, st := range report.Stages {
		upstream := st.Upstream
		if upstream == "" {
			upstream = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, st.Kind, st.Version, upstream)
	}
	_ = w.Flush()

	fmt.Fprintln(out, "\nTOOLS")
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range report.Plan.Manifest.Tools {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Kind, t.Description)
	}
	_ = w.Flush()

	if len(report.Plan.Problems) > 0 {
		fmt.Fprintln(out, "\nPROBLEMS")
		for _, p := range report.Plan.Problems {
			fmt.Fprintf(out, "- %s\n", p)
		}
	}
}

func printSearch(cmd *cobra.Command, out io.Writer, report *build.Report, query string, limit int) error {
	c, err := catalog.New(report.Plan.Manifest, catalog.Options{})
	if err != nil {
		return err
	}
	results, err := c.Search(cmd.Context(), query, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, strings.Join(r.Tags, ","), r.ShortDescription)
	}
	return w.Flush()
}
