package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/crawl"
	"github.com/jonwraymond/toolsynth/stage"
	"github.com/jonwraymond/toolsynth/synth"
)

// chainDialer serves each stage of a fixed chain over in-memory transports.
func chainDialer(stages map[string]*stage.Stage) crawl.Dialer {
	return crawl.DialerFunc(func(ctx context.Context, addr string) (*mcp.ClientSession, error) {
		st, ok := stages[addr]
		if !ok {
			return nil, fmt.Errorf("dial %s: connection refused", addr)
		}
		server := mcp.NewServer(&mcp.Implementation{Name: "stage", Version: st.Version}, nil)
		if err := crawl.ServeStage(server, st); err != nil {
			return nil, err
		}
		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
			return nil, err
		}
		client := mcp.NewClient(&mcp.Implementation{Name: "builder", Version: "test"}, nil)
		return client.Connect(ctx, clientTransport, nil)
	})
}

func testChain(upstream string) map[string]*stage.Stage {
	return map[string]*stage.Stage{
		"mem://root": {Kind: stage.KindRoot, Version: "1", Root: &stage.Root{Tools: []stage.ToolDefinition{
			{Name: "lookup", Description: "Look up a user", InputSchema: map[string]any{"type": "object"}, Code: "func Handle(a map[string]any) (any, error) { return a, nil }"},
		}}},
		"mem://edge": {Kind: stage.KindTransform, Version: "2", Upstream: "mem://root", Transform: &stage.Transform{
			HiddenTools: []string{"lookup"},
			RoutedTools: []stage.RoutingEntry{{ExposedName: "find_user", UpstreamName: upstream}},
		}},
	}
}

func newBuilder(t *testing.T, chain map[string]*stage.Stage, strict bool) *Builder {
	t.Helper()
	b, err := New(Options{
		Crawl: crawl.Config{Dialer: chainDialer(chain)},
		Synth: synth.Options{Module: "example.com/users", Strict: strict},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

func TestBuild_WritesBundle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "users")
	res, err := newBuilder(t, testChain("lookup"), false).Build(context.Background(), "mem://edge", dir)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Stages != 2 || len(res.Problems) != 0 || res.Dir != dir {
		t.Errorf("Result = %+v", res)
	}

	m, err := artifact.Load(os.DirFS(dir))
	if err != nil {
		t.Fatalf("artifact.Load() error = %v", err)
	}
	var names []string
	for _, tool := range m.Tools {
		names = append(names, tool.Name)
	}
	if diff := cmp.Diff([]string{"find_user"}, names); diff != "" {
		t.Errorf("exposed tools mismatch (-want +got):\n%s", diff)
	}
	for _, p := range res.Files {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
			t.Errorf("listed file %s missing: %v", p, err)
		}
	}
}

func TestBuild_DefersProblemsOutsideStrictMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res, err := newBuilder(t, testChain("ghost"), false).Build(context.Background(), "mem://edge", dir)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(res.Problems) != 1 {
		t.Errorf("Problems = %v, want 1", res.Problems)
	}
}

func TestBuild_StrictLeavesNothingBehind(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "out")
	_, err := newBuilder(t, testChain("ghost"), true).Build(context.Background(), "mem://edge", dir)
	if !errors.Is(err, synth.ErrValidation) {
		t.Fatalf("Build() error = %v, want ErrValidation", err)
	}
	entries, _ := os.ReadDir(parent)
	if len(entries) != 0 {
		t.Errorf("parent dir holds %d entries, want none", len(entries))
	}
}

func TestBuild_CrawlFailure(t *testing.T) {
	chain := testChain("lookup")
	delete(chain, "mem://root")
	dir := filepath.Join(t.TempDir(), "out")

	_, err := newBuilder(t, chain, false).Build(context.Background(), "mem://edge", dir)
	if !errors.Is(err, crawl.ErrConnection) {
		t.Fatalf("Build() error = %v, want ErrConnection", err)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Errorf("output dir exists after failed build: %v", statErr)
	}
}

func TestBuild_RequiresArguments(t *testing.T) {
	b := newBuilder(t, testChain("lookup"), false)
	if _, err := b.Build(context.Background(), "", "x"); !errors.Is(err, ErrAddrRequired) {
		t.Errorf("Build(no addr) error = %v", err)
	}
	if _, err := b.Build(context.Background(), "mem://edge", ""); !errors.Is(err, ErrDirRequired) {
		t.Errorf("Build(no dir) error = %v", err)
	}
}

func TestInspect(t *testing.T) {
	report, err := newBuilder(t, testChain("lookup"), false).Inspect(context.Background(), "mem://edge")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	var kinds []stage.Kind
	for _, st := range report.Stages {
		kinds = append(kinds, st.Kind)
	}
	if diff := cmp.Diff([]stage.Kind{stage.KindRoot, stage.KindTransform}, kinds); diff != "" {
		t.Errorf("stage kinds mismatch (-want +got):\n%s", diff)
	}
	if report.Plan == nil || len(report.Plan.Manifest.Tools) != 1 {
		t.Errorf("Plan = %+v", report.Plan)
	}
}

func TestInspect_StrictReturnsReport(t *testing.T) {
	report, err := newBuilder(t, testChain("ghost"), true).Inspect(context.Background(), "mem://edge")
	if !errors.Is(err, synth.ErrValidation) {
		t.Fatalf("Inspect() error = %v, want ErrValidation", err)
	}
	if report == nil || len(report.Plan.Problems) != 1 {
		t.Errorf("report = %+v, want problems listed", report)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"crawl", Options{Crawl: crawl.Config{MaxDepth: -1}}, crawl.ErrConfiguration},
		{"synth", Options{Synth: synth.Options{Module: "/abs"}}, synth.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}
