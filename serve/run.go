package serve

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/dispatch"
	"github.com/jonwraymond/toolsynth/internal/logging"
)

// Run loads the bundle in fsys and serves it until ctx is done, then shuts
// down gracefully.
func Run(ctx context.Context, fsys fs.FS, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.LogLevel != "" {
		level, _ := logging.ParseLevel(opts.LogLevel)
		logging.Init(level, opts.LogFormat)
	}
	opts.applyDefaults()
	log := opts.Logger

	r, err := dispatch.Load(fsys, dispatch.Config{ValidateInput: opts.ValidateInput})
	if err != nil {
		return err
	}
	if pkg, err := artifact.LoadPackage(fsys); err == nil {
		log.Info("bundle loaded",
			"name", pkg.Name,
			"stages", len(pkg.Stages),
			"tools", len(r.Tools()),
			"resources", len(r.Resources()),
		)
	}

	ln := opts.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Handler:           Handler(NewServer(r, opts), r, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving", "addr", ln.Addr().String(), "auth", opts.Token != "")
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
