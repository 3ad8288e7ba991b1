package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
)

// maxFetchBody caps the response body handed back to a fragment.
const maxFetchBody = 4 << 20

// DomainAllowed reports whether host matches one of domains exactly or as a
// subdomain. Matching is case-insensitive and ignores a trailing dot.
func DomainAllowed(host string, domains []string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// invocation holds the per-run state behind the host package.
type invocation struct {
	ctx      context.Context
	exec     *Executor
	inv      Invocation
	maxCalls int

	mu         sync.Mutex
	stdout     strings.Builder
	toolCalls  []ToolCallRecord
	callCount  int
	violations []error
}

func (h *invocation) println(args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(&h.stdout, args...)
}

func (h *invocation) deny(err *CapabilityError) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.violations = append(h.violations, err)
	return err
}

func (h *invocation) violation() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.violations) == 0 {
		return nil
	}
	return h.violations[0]
}

// exports builds the host package for this invocation. Fetch and CallTool
// are only present when granted, so a fragment that references them without
// the grant fails to compile.
func (h *invocation) exports() interp.Exports {
	syms := map[string]reflect.Value{
		"Println": reflect.ValueOf(h.println),
		"Clone":   reflect.ValueOf(cloneValue),
		"Cancelled": reflect.ValueOf(func() bool {
			return h.ctx.Err() != nil
		}),
	}
	if h.inv.Capability == CapNetwork {
		syms["Fetch"] = reflect.ValueOf(h.fetch)
	}
	if h.inv.Fragment.Role == RoleOrchestration {
		syms["CallTool"] = reflect.ValueOf(h.callTool)
	}
	return interp.Exports{hostPackage + "/" + hostPackage: syms}
}

// checkTarget validates a fetch target against the allowlist.
func (h *invocation) checkTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, h.deny(&CapabilityError{
			Fragment:   h.inv.Fragment.Name,
			Capability: "network",
			Target:     raw,
			Reason:     "invalid URL",
		})
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, h.deny(&CapabilityError{
			Fragment:   h.inv.Fragment.Name,
			Capability: "network",
			Target:     raw,
			Reason:     "unsupported scheme " + u.Scheme,
		})
	}
	if !DomainAllowed(u.Hostname(), h.inv.AllowedDomains) {
		return nil, h.deny(&CapabilityError{
			Fragment:   h.inv.Fragment.Name,
			Capability: "network",
			Target:     u.Hostname(),
			Reason:     "host not in domain allowlist",
		})
	}
	return u, nil
}

// fetch performs an HTTP request for the fragment.
// opts may carry "method", "headers" (object of strings), and "body" (string).
// The reply is {"status": n, "headers": {...}, "body": "..."}.
func (h *invocation) fetch(rawURL string, opts map[string]any) (map[string]any, error) {
	u, err := h.checkTarget(rawURL)
	if err != nil {
		return nil, err
	}

	method := http.MethodGet
	if m, ok := opts["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	var body io.Reader
	if b, ok := opts["body"].(string); ok {
		body = strings.NewReader(b)
	}
	req, err := http.NewRequestWithContext(h.ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if hdrs, ok := opts["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			req.Header.Set(k, fmt.Sprint(v))
		}
	}

	client := *h.exec.cfg.HTTPClient
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		_, err := h.checkTarget(r.URL.String())
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return nil, err
	}
	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}
	return map[string]any{
		"status":  float64(resp.StatusCode),
		"headers": headers,
		"body":    string(data),
	}, nil
}

// callTool invokes a tool through the invocation's ToolCaller, enforcing the
// call limit and recording a trace entry.
func (h *invocation) callTool(name string, args map[string]any) (any, error) {
	h.mu.Lock()
	if h.maxCalls > 0 && h.callCount >= h.maxCalls {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: max tool calls (%d) exceeded", ErrLimitExceeded, h.maxCalls)
	}
	h.callCount++
	h.mu.Unlock()

	if h.inv.CallTool == nil {
		return nil, h.deny(&CapabilityError{
			Fragment:   h.inv.Fragment.Name,
			Capability: "call-tool",
			Target:     name,
			Reason:     "no tool caller bound",
		})
	}

	args = cloneArgs(args)
	start := time.Now()
	result, err := h.inv.CallTool(h.ctx, name, args)

	record := ToolCallRecord{
		Tool:       name,
		Args:       args,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		record.Error = err.Error()
		var capErr *CapabilityError
		if errors.As(err, &capErr) {
			_ = h.deny(capErr)
		}
	} else {
		record.Result = result
	}

	h.mu.Lock()
	h.toolCalls = append(h.toolCalls, record)
	h.mu.Unlock()

	return result, err
}
