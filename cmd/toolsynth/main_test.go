package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/catalog"
	"github.com/jonwraymond/toolsynth/config"
	"github.com/jonwraymond/toolsynth/crawl"
	"github.com/jonwraymond/toolsynth/serve"
	"github.com/jonwraymond/toolsynth/stage"
	"github.com/jonwraymond/toolsynth/synth"
)

func newStageServer(t *testing.T, st *stage.Stage) *httptest.Server {
	t.Helper()
	server := mcp.NewServer(&mcp.Implementation{Name: "stage", Version: st.Version}, nil)
	if err := crawl.ServeStage(server, st); err != nil {
		t.Fatalf("ServeStage() error = %v", err)
	}
	ts := httptest.NewServer(mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil))
	t.Cleanup(ts.Close)
	return ts
}

// startChain serves a root and a transform stage and returns the
// transform's address.
func startChain(t *testing.T, upstream string) string {
	t.Helper()
	root := newStageServer(t, &stage.Stage{Kind: stage.KindRoot, Version: "1", Root: &stage.Root{Tools: []stage.ToolDefinition{{
		Name:        "lookup",
		Description: "Look up a user account",
		InputSchema: map[string]any{"type": "object"},
		Code:        "func Handle(a map[string]any) (any, error) { return a, nil }",
	}}}})
	edge := newStageServer(t, &stage.Stage{Kind: stage.KindTransform, Version: "2", Upstream: root.URL, Transform: &stage.Transform{
		HiddenTools: []string{"lookup"},
		RoutedTools: []stage.RoutingEntry{{ExposedName: "find_user", UpstreamName: upstream}},
	}})
	return edge.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{serve.EnvAddr, serve.EnvLogLevel, serve.EnvLogFormat} {
		t.Setenv(k, "")
	}
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInspect_PrintsChainAndTools(t *testing.T) {
	addr := startChain(t, "lookup")
	out, err := execute(t, "inspect", addr, "--log-level", "error")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{"STAGES", "root", "transform", "TOOLS", "find_user", "routed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "PROBLEMS") {
		t.Errorf("unexpected problems:\n%s", out)
	}
}

func TestInspect_Search(t *testing.T) {
	addr := startChain(t, "lookup")
	out, err := execute(t, "inspect", addr, "--search", "user", "--log-level", "error")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	if !strings.Contains(out, catalog.DefaultNamespace+":find_user") {
		t.Errorf("search output = %q", out)
	}
}

func TestInspect_StrictListsProblems(t *testing.T) {
	addr := startChain(t, "ghost")
	out, err := execute(t, "inspect", addr, "--strict", "--log-level", "error")
	if !errors.Is(err, synth.ErrValidation) {
		t.Fatalf("inspect error = %v, want ErrValidation", err)
	}
	if !strings.Contains(out, "PROBLEMS") || !strings.Contains(out, "ghost") {
		t.Errorf("output = %q", out)
	}
}

func TestBuild_WritesArtifact(t *testing.T) {
	addr := startChain(t, "lookup")
	dir := filepath.Join(t.TempDir(), "users")

	out, err := execute(t, "build", addr, "-o", dir, "--log-level", "error")
	if err != nil {
		t.Fatalf("build error = %v", err)
	}
	if !strings.Contains(out, "from 2 stages") {
		t.Errorf("output = %q", out)
	}
	if _, err := artifact.Load(os.DirFS(dir)); err != nil {
		t.Errorf("artifact.Load() error = %v", err)
	}
}

func TestBuild_StrictFailsWithoutOutput(t *testing.T) {
	addr := startChain(t, "ghost")
	dir := filepath.Join(t.TempDir(), "users")

	if _, err := execute(t, "build", addr, "-o", dir, "--strict", "--log-level", "error"); !errors.Is(err, synth.ErrValidation) {
		t.Fatalf("build error = %v, want ErrValidation", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("output dir exists: %v", err)
	}
}

func TestBuild_RequiresOutput(t *testing.T) {
	if _, err := execute(t, "build", "http://127.0.0.1:1"); err == nil {
		t.Fatal("build without -o succeeded")
	}
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	if _, err := execute(t, "inspect", "http://127.0.0.1:1", "--log-level", "loud"); !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestRoot_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolsynth.yaml")
	if err := os.WriteFile(path, []byte("crawl:\n  max_depth: 1\nlog:\n  level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	addr := startChain(t, "lookup")
	if _, err := execute(t, "inspect", addr, "--config", path); !errors.Is(err, crawl.ErrTooDeep) {
		t.Fatalf("inspect error = %v, want ErrTooDeep", err)
	}
}
