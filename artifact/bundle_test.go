package artifact

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	m := Manifest{
		Tools:          []Tool{{Name: "search", InputSchema: map[string]any{"type": "object"}, Kind: KindSynthetic}},
		Routes:         map[string]string{},
		Synthetic:      []string{"search"},
		Handlers:       map[string]Handler{"lookup": {File: ToolsDir + "/lookup.go.frag"}},
		Transforms:     map[string]string{},
		Orchestrations: map[string]string{"search": OrchestrationsDir + "/search.go.frag"},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var b Bundle
	for p, content := range map[string]string{
		RuntimeFile:                          string(data),
		ToolsDir + "/lookup.go.frag":         "func Handle(args map[string]any) (any, error) { return nil, nil }",
		OrchestrationsDir + "/search.go.frag": "func Orchestrate(args map[string]any) (any, error) { return nil, nil }",
	} {
		if err := b.Add(p, []byte(content)); err != nil {
			t.Fatalf("Add(%q) error = %v", p, err)
		}
	}
	return &b
}

func TestBundle_AddRejectsEscapingPaths(t *testing.T) {
	var b Bundle
	for _, p := range []string{"../x", "/abs", "a/../../b", "."} {
		if err := b.Add(p, nil); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Add(%q) error = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestBundle_PathsSorted(t *testing.T) {
	b := testBundle(t)
	want := []string{
		OrchestrationsDir + "/search.go.frag",
		ToolsDir + "/lookup.go.frag",
		RuntimeFile,
	}
	if diff := cmp.Diff(want, b.Paths()); diff != "" {
		t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FromBundleFS(t *testing.T) {
	m, err := Load(testBundle(t).FS())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !m.IsSynthetic("search") || m.IsSynthetic("lookup") {
		t.Errorf("IsSynthetic mismatch: %+v", m.Orchestrations)
	}
	if _, ok := m.Tool("search"); !ok {
		t.Error("expected search in listing")
	}
}

func TestLoad_MissingFragment(t *testing.T) {
	b := testBundle(t)
	delete(b.files, ToolsDir+"/lookup.go.frag")
	if _, err := Load(b.FS()); !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("Load() error = %v, want ErrInvalidBundle", err)
	}
}

func TestWriteDir_RoundTrip(t *testing.T) {
	b := testBundle(t)
	dir := filepath.Join(t.TempDir(), "out")
	if err := b.WriteDir(dir); err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}
	if _, err := Load(os.DirFS(dir)); err != nil {
		t.Fatalf("Load(DirFS) error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "fragments", "tools", "lookup.go.frag"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := b.File(ToolsDir + "/lookup.go.frag")
	if string(got) != string(want) {
		t.Errorf("fragment = %q, want %q", got, want)
	}
}

func TestWriteDir_ReplacesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := testBundle(t).WriteDir(dir); err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}
	if _, err := os.Stat(stale); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("stale file survived: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("parent has %d entries, want only the bundle dir", len(entries))
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"lookup", "lookup"},
		{"get-user_2", "get-user_2"},
	}
	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if SafeName("a/b") == SafeName("a_b") {
		t.Error("SafeName collided for a/b and a_b")
	}
	if SafeName("../etc") == "../etc" {
		t.Error("SafeName kept path separators")
	}
}
