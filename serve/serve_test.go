package serve

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/dispatch"
	"github.com/jonwraymond/toolsynth/stage"
	"github.com/jonwraymond/toolsynth/synth"
)

const echoCode = `
func Handle(args map[string]any) (any, error) {
	return map[string]any{"echo": args["msg"]}, nil
}`

func testBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	stages := []*stage.Stage{
		{Kind: stage.KindRoot, Version: "1", Root: &stage.Root{Tools: []stage.ToolDefinition{{
			Name:        "echo",
			Description: "Echo a message",
			InputSchema: map[string]any{"type": "object"},
			Code:        echoCode,
		}}}},
		{Kind: stage.KindPresentation, Version: "2", Upstream: "http://root", Presentation: &stage.Presentation{
			UIBindings: []stage.UIBinding{{ToolName: "echo", ResourceID: "echo-view", Markup: "<p>echo</p>"}},
		}},
	}
	b, err := synth.Synthesize(stages, synth.Options{})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	return b
}

func testResolver(t *testing.T) *dispatch.Resolver {
	t.Helper()
	r, err := dispatch.Load(testBundle(t).FS(), dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.Load() error = %v", err)
	}
	return r
}

func connectInMemory(t *testing.T, ctx context.Context, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	t1, t2 := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func firstText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatalf("no text content in %+v", res)
	return ""
}

func TestNewServer_ListsAndCallsTools(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, NewServer(testResolver(t), Options{}))

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", tools.Tools)
	}
	if tools.Tools[0].Meta[synth.MetaResourceURI] != "ui://echo-view" {
		t.Errorf("tool meta = %v", tools.Tools[0].Meta)
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"msg": "hi"}})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("CallTool() tool error: %s", firstText(t, res))
	}
	if got := firstText(t, res); got != `{"echo":"hi"}` {
		t.Errorf("text = %s", got)
	}
}

func TestNewServer_NonObjectSchemasFromStages(t *testing.T) {
	stages := []*stage.Stage{
		{Kind: stage.KindRoot, Version: "1", Root: &stage.Root{Tools: []stage.ToolDefinition{{
			Name:        "echo",
			Description: "Echo a message",
			InputSchema: map[string]any{"type": []any{"object", "null"}},
			Code:        echoCode,
		}}}},
		{Kind: stage.KindTransform, Version: "2", Upstream: "http://root", Transform: &stage.Transform{
			RoutedTools: []stage.RoutingEntry{{
				ExposedName:   "shout",
				UpstreamName:  "echo",
				ExposedSchema: map[string]any{"type": "array"},
			}},
		}},
	}
	b, err := synth.Synthesize(stages, synth.Options{})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	r, err := dispatch.Load(b.FS(), dispatch.Config{})
	if err != nil {
		t.Fatalf("dispatch.Load() error = %v", err)
	}

	ctx := context.Background()
	session := connectInMemory(t, ctx, NewServer(r, Options{}))
	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	if diff := cmp.Diff([]string{"shout"}, names); diff != "" {
		t.Fatalf("tools mismatch (-want +got):\n%s", diff)
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "shout", Arguments: map[string]any{"msg": "hi"}})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if got := firstText(t, res); got != `{"echo":"hi"}` {
		t.Errorf("text = %s", got)
	}
}

func TestNewServer_UnknownToolIsToolError(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, NewServer(testResolver(t), Options{}))

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "nope"})
	if err != nil {
		t.Fatalf("CallTool() transport error = %v, want tool error", err)
	}
	if !res.IsError {
		t.Fatalf("CallTool() = %+v, want IsError", res)
	}
	if got := firstText(t, res); got != `unknown tool: "nope"` {
		t.Errorf("text = %q", got)
	}
}

func TestNewServer_Resources(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, NewServer(testResolver(t), Options{}))

	list, err := session.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(list.Resources) != 1 || list.Resources[0].URI != "ui://echo-view" {
		t.Fatalf("resources = %+v", list.Resources)
	}

	read, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "ui://echo-view"})
	if err != nil {
		t.Fatalf("ReadResource() error = %v", err)
	}
	if read.Contents[0].Text != "<p>echo</p>" || read.Contents[0].MIMEType != "text/html" {
		t.Errorf("contents = %+v", read.Contents[0])
	}
}

type bearer struct {
	token string
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func TestHandler_HealthAndAuth(t *testing.T) {
	r := testResolver(t)
	opts := Options{Token: "s3cret"}
	ts := httptest.NewServer(Handler(NewServer(r, opts), r, opts))
	defer ts.Close()

	resp, err := http.Get(ts.URL + HealthPath)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	var health map[string]any
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode health: %v", err)
	}
	want := map[string]any{"status": "ok", "tools": float64(1), "resources": float64(1)}
	if diff := cmp.Diff(want, health); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	resp, err = http.Post(ts.URL+MCPPath, "application/json", nil)
	if err != nil {
		t.Fatalf("POST mcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   ts.URL + MCPPath,
		HTTPClient: &http.Client{Transport: bearer{token: "s3cret"}},
		MaxRetries: -1,
	}, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer session.Close()
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"msg": "x"}})
	if err != nil || res.IsError {
		t.Fatalf("CallTool() = %+v, %v", res, err)
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	fsys := testBundle(t).FS()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, fsys, Options{Listener: ln, ShutdownTimeout: time.Second})
	}()

	url := "http://" + ln.Addr().String() + HealthPath
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_InvalidBundle(t *testing.T) {
	var empty artifact.Bundle
	err := Run(context.Background(), empty.FS(), Options{})
	if !errors.Is(err, artifact.ErrInvalidBundle) {
		t.Errorf("Run() error = %v, want ErrInvalidBundle", err)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	var empty artifact.Bundle
	err := Run(context.Background(), empty.FS(), Options{LogLevel: "loud"})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Run() error = %v, want ErrConfiguration", err)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(EnvAddr, "127.0.0.1:9999")
	t.Setenv(EnvToken, "tok")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvValidateInput, "true")
	t.Setenv(EnvLogFormat, "")

	got := OptionsFromEnv("pipe", "1+2")
	want := Options{
		Name:          "pipe",
		Version:       "1+2",
		Addr:          "127.0.0.1:9999",
		Token:         "tok",
		LogLevel:      "debug",
		ValidateInput: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("OptionsFromEnv mismatch (-want +got):\n%s", diff)
	}
}
