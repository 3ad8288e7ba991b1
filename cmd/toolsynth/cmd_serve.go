package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/serve"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve a synthesized bundle directory over streamable HTTP",
		Long: `Serve loads the bundle written by "toolsynth build" and serves its tools
without compiling the generated program. The listen address and bearer
token come from the configuration (serve.addr, serve.token_env).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := os.DirFS(args[0])
			name, ver := "", version
			if pkg, err := artifact.LoadPackage(fsys); err == nil {
				name = pkg.Name
			}
			return serve.Run(cmd.Context(), fsys, root.cfg.ServeOptions(name, ver))
		},
	}
}
