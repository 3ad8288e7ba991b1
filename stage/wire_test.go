package stage

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode_Root(t *testing.T) {
	doc := `{
		"stage": "root",
		"version": "1.2.0",
		"upstream_url": null,
		"tools": [
			{"name": "lookup", "description": "Look up a key", "input_schema": {"type": "object"}, "code": "func Handle(args map[string]any) (any, error) { return args, nil }"},
			{"name": "fetch", "description": "Fetch a page", "code": "x", "needs_network": true}
		],
		"allowed_domains": ["example.com"]
	}`
	st, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if st.Kind != KindRoot {
		t.Errorf("Kind = %q, want %q", st.Kind, KindRoot)
	}
	if !st.IsChainRoot() {
		t.Error("expected chain root for null upstream_url")
	}
	if st.Root == nil || len(st.Root.Tools) != 2 {
		t.Fatalf("Root.Tools = %+v, want 2 tools", st.Root)
	}
	fetch, ok := st.Root.Tool("fetch")
	if !ok || !fetch.NeedsNetwork {
		t.Errorf("Tool(fetch) = %+v, %v; want needs_network", fetch, ok)
	}
	if diff := cmp.Diff([]string{"example.com"}, st.Root.AllowedDomains); diff != "" {
		t.Errorf("AllowedDomains mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_TransformKeepsAbsentTransforms(t *testing.T) {
	doc := `{
		"stage": "transform",
		"version": 3,
		"upstream_url": "http://root.local/mcp",
		"hidden_tools": ["lookup"],
		"routed_tools": [
			{"exposed_name": "find", "upstream_name": "lookup", "input_transform": ""},
			{"exposed_name": "same", "upstream_name": "same"}
		],
		"synthetic_tools": [
			{"name": "search", "description": "Search", "orchestration_code": "x", "referenced_tools": ["lookup"]}
		]
	}`
	st, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if st.Version != "3" {
		t.Errorf("Version = %q, want %q", st.Version, "3")
	}
	if st.Upstream != "http://root.local/mcp" {
		t.Errorf("Upstream = %q", st.Upstream)
	}
	tr := st.Transform
	if !tr.Hidden("lookup") || tr.Hidden("search") {
		t.Errorf("Hidden() mismatch for %v", tr.HiddenTools)
	}
	find := tr.RoutedTools[0]
	if find.InputTransform == nil || *find.InputTransform != "" {
		t.Errorf("InputTransform = %v, want present and empty", find.InputTransform)
	}
	if find.OutputTransform != nil {
		t.Errorf("OutputTransform = %v, want absent", find.OutputTransform)
	}
	if !find.Modified() {
		t.Error("find should be modified")
	}
	if tr.RoutedTools[1].Modified() {
		t.Error("same should not be modified")
	}
	if diff := cmp.Diff([]string{"lookup"}, tr.SyntheticTools[0].References); diff != "" {
		t.Errorf("References mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"not json", `{"stage":`, ""},
		{"missing stage", `{"version":"1"}`, "stage"},
		{"unknown stage", `{"stage":"weird","version":"1"}`, "stage"},
		{"missing version", `{"stage":"root","tools":[]}`, "version"},
		{"root without tools", `{"stage":"root","version":"1"}`, "tools"},
		{"root tool without code", `{"stage":"root","version":"1","tools":[{"name":"a"}]}`, "tools[0].code"},
		{"root tool without name", `{"stage":"root","version":"1","tools":[{"code":"x"}]}`, "tools[0].name"},
		{"route without upstream", `{"stage":"transform","version":"1","routed_tools":[{"exposed_name":"a"}]}`, "routed_tools[0].upstream_name"},
		{"synthetic without code", `{"stage":"transform","version":"1","synthetic_tools":[{"name":"s"}]}`, "synthetic_tools[0].orchestration_code"},
		{"presentation without bindings", `{"stage":"presentation","version":"1"}`, "ui_bindings"},
		{"binding without resource", `{"stage":"presentation","version":"1","ui_bindings":[{"tool_name":"a"}]}`, "ui_bindings[0].resource_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("Decode() error = %v, want ErrProtocol", err)
			}
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ProtocolError, got %T", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Field = %q, want %q", pe.Field, tt.field)
			}
		})
	}
}

func TestEncode_DecodesToSameStage(t *testing.T) {
	in := "shape"
	want := &Stage{
		Kind:     KindTransform,
		Version:  "2",
		Upstream: "http://up/mcp",
		Transform: &Transform{
			HiddenTools: []string{"raw"},
			RoutedTools: []RoutingEntry{{
				ExposedName:    "nice",
				UpstreamName:   "raw",
				ExposedSchema:  map[string]any{"type": "object"},
				InputTransform: &in,
			}},
		},
	}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stage mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_RootWritesNullUpstream(t *testing.T) {
	data, err := Encode(&Stage{Kind: KindRoot, Version: "1", Root: &Root{}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := `{"stage":"root","version":"1","upstream_url":null,"tools":[]}`
	if string(data) != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}
}

func TestProtocolError_Error(t *testing.T) {
	err := &ProtocolError{Addr: "http://a", Field: "version", Reason: "required field missing"}
	want := "protocol error from http://a: version: required field missing"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
