package synth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"sort"
	"strings"
	"text/template"

	"github.com/jonwraymond/toolsynth/artifact"
)

var goModTemplate = template.Must(template.New("go.mod").Parse(`module {{.Module}}

go {{.GoVersion}}

require {{.RuntimeModule}} {{.RuntimeVersion}}
`))

// mainTemplate renders the entry point. Every data value is inserted with
// printf "%q" so names can never alter the generated code.
var mainTemplate = template.Must(template.New("main.go").Parse(`// Code generated by toolsynth. DO NOT EDIT.

package main

import (
	"context"
	"embed"
	"log"
	"os"
	"os/signal"
	"syscall"

	"{{.RuntimeModule}}/serve"
)

//go:embed {{.Embed}}
var bundle embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := serve.OptionsFromEnv({{printf "%q" .Name}}, {{printf "%q" .Version}})
	if err := serve.Run(ctx, bundle, opts); err != nil {
		log.Fatal(err)
	}
}
`))

type templateData struct {
	Name           string
	Version        string
	Module         string
	GoVersion      string
	RuntimeModule  string
	RuntimeVersion string
	Embed          string
}

func emit(p *Plan, opts Options) (*artifact.Bundle, error) {
	var b artifact.Bundle

	paths := make([]string, 0, len(p.fragments))
	for path := range p.fragments {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := b.Add(path, p.fragments[path]); err != nil {
			return nil, err
		}
	}

	runtime, err := marshal(p.Manifest)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", artifact.RuntimeFile, err)
	}
	if err := b.Add(artifact.RuntimeFile, runtime); err != nil {
		return nil, err
	}

	data := templateData{
		Name:           opts.Name,
		Version:        chainVersion(p),
		Module:         opts.Module,
		GoVersion:      opts.GoVersion,
		RuntimeModule:  opts.RuntimeModule,
		RuntimeVersion: opts.RuntimeVersion,
		Embed:          embedPatterns(paths),
	}

	var mod bytes.Buffer
	if err := goModTemplate.Execute(&mod, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", artifact.ModFile, err)
	}
	if err := b.Add(artifact.ModFile, mod.Bytes()); err != nil {
		return nil, err
	}

	var src bytes.Buffer
	if err := mainTemplate.Execute(&src, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", artifact.EntryPoint, err)
	}
	formatted, err := format.Source(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", artifact.EntryPoint, err)
	}
	if err := b.Add(artifact.EntryPoint, formatted); err != nil {
		return nil, err
	}

	pkg := artifact.Package{
		Name:       opts.Name,
		Module:     opts.Module,
		GoVersion:  opts.GoVersion,
		EntryPoint: artifact.EntryPoint,
		Runtime:    artifact.RuntimeFile,
		Dependencies: []artifact.Dependency{
			{Path: opts.RuntimeModule, Version: opts.RuntimeVersion},
		},
		Files:  append(b.Paths(), artifact.ManifestFile),
		Stages: p.stages,
	}
	sort.Strings(pkg.Files)
	manifest, err := marshal(pkg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", artifact.ManifestFile, err)
	}
	if err := b.Add(artifact.ManifestFile, manifest); err != nil {
		return nil, err
	}
	return &b, nil
}

// marshal renders indented JSON with a trailing newline. Map keys are
// sorted by encoding/json.
func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// embedPatterns lists the top-level bundle entries the entry point embeds.
// The all: prefix keeps fragment files whose names start with "_" or ".".
func embedPatterns(fragments []string) string {
	patterns := []string{artifact.ManifestFile, artifact.RuntimeFile}
	dirs := map[string]bool{}
	for _, p := range fragments {
		if top, _, ok := strings.Cut(p, "/"); ok && !dirs[top] {
			dirs[top] = true
			patterns = append(patterns, "all:"+top)
		}
	}
	sort.Strings(patterns)
	return strings.Join(patterns, " ")
}

// chainVersion joins stage versions downstream-last, e.g. "1.0+2.1".
func chainVersion(p *Plan) string {
	versions := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		versions = append(versions, s.Version)
	}
	if len(versions) == 0 {
		return "0"
	}
	return strings.Join(versions, "+")
}
