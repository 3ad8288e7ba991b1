package build

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/toolsynth/crawl"
	"github.com/jonwraymond/toolsynth/stage"
	"github.com/jonwraymond/toolsynth/synth"
)

// Builder is the facade over crawl, synthesis and output.
type Builder struct {
	crawler *crawl.Crawler
	opts    Options
}

// New creates a Builder with the given options.
func New(opts Options) (*Builder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	crawler, err := crawl.New(opts.Crawl)
	if err != nil {
		return nil, err
	}
	return &Builder{crawler: crawler, opts: opts}, nil
}

// Report describes a chain and the tool set an artifact built from it
// would expose.
type Report struct {
	// Addr is the stage address the crawl started from.
	Addr string

	// Stages is the crawled chain, root first.
	Stages []*stage.Stage

	// Plan holds the exposed listing and any reference problems.
	Plan *synth.Plan

	// Duration is how long the crawl and analysis took.
	Duration time.Duration
}

// Inspect crawls the chain at addr and analyzes it without rendering files.
// In strict mode a chain with reference problems yields the report along
// with a *synth.ValidationError.
func (b *Builder) Inspect(ctx context.Context, addr string) (*Report, error) {
	if addr == "" {
		return nil, ErrAddrRequired
	}
	start := time.Now()

	stages, err := b.crawler.Crawl(ctx, addr)
	if err != nil {
		return nil, err
	}
	plan, err := synth.Analyze(stages, b.opts.Synth)
	return &Report{Addr: addr, Stages: stages, Plan: plan, Duration: time.Since(start)}, err
}

// Result summarizes a written artifact.
type Result struct {
	// Addr is the stage address the crawl started from.
	Addr string

	// Dir is the directory the bundle was written to.
	Dir string

	// Stages is the number of crawled stages.
	Stages int

	// Files lists the bundle paths, sorted.
	Files []string

	// Problems lists reference inconsistencies deferred to call time.
	Problems []string

	// Duration is how long the whole build took.
	Duration time.Duration
}

// Build crawls the chain at addr, synthesizes an artifact and writes it to
// dir atomically. Nothing is written when any step fails.
func (b *Builder) Build(ctx context.Context, addr, dir string) (*Result, error) {
	if addr == "" {
		return nil, ErrAddrRequired
	}
	if dir == "" {
		return nil, ErrDirRequired
	}
	start := time.Now()
	log := b.opts.Logger.With("addr", addr)

	stages, err := b.crawler.Crawl(ctx, addr)
	if err != nil {
		return nil, err
	}
	log.Info("chain crawled", "stages", len(stages))

	plan, err := synth.Analyze(stages, b.opts.Synth)
	if err != nil {
		return nil, err
	}
	for _, p := range plan.Problems {
		log.Warn("deferred reference problem", "problem", p)
	}

	bundle, err := synth.Synthesize(stages, b.opts.Synth)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := bundle.WriteDir(dir); err != nil {
		return nil, fmt.Errorf("write %s: %w", dir, err)
	}

	res := &Result{
		Addr:     addr,
		Dir:      dir,
		Stages:   len(stages),
		Files:    bundle.Paths(),
		Problems: plan.Problems,
		Duration: time.Since(start),
	}
	log.Info("artifact written", "dir", dir, "files", len(res.Files), "tools", len(plan.Manifest.Tools))
	return res, nil
}
