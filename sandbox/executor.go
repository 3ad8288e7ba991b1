package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/traefik/yaegi/interp"
)

// Runner runs code fragments in isolated interpreters.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; runs share no state.
// - Context: must honor cancellation/deadlines; the configured timeout surfaces as SandboxError(timeout).
// - Errors: fragment failures return *SandboxError; capability violations return *CapabilityError.
// - Ownership: the invocation input is copied before the fragment sees it; Result is caller-owned.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Executor is the yaegi-backed Runner. Every run builds a fresh interpreter
// that sees only the allowlisted stdlib packages and the host package.
type Executor struct {
	cfg Config
}

var _ Runner = (*Executor)(nil)

// New creates an Executor with the given configuration.
// Returns ErrConfiguration if any field is invalid.
func New(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &Executor{cfg: cfg}, nil
}

// Timeout returns the per-run wall-clock bound.
func (e *Executor) Timeout() time.Duration {
	return e.cfg.Timeout
}

type outcome struct {
	value any
	err   error
}

// Run evaluates the fragment and calls its entry point with the invocation input.
func (e *Executor) Run(ctx context.Context, inv Invocation) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	h := &invocation{
		ctx:      ctx,
		exec:     e,
		inv:      inv,
		maxCalls: e.cfg.MaxToolCalls,
	}

	start := time.Now()
	value, err := e.run(ctx, h)
	duration := time.Since(start)

	h.mu.Lock()
	result := Result{
		Stdout:    h.stdout.String(),
		ToolCalls: append([]ToolCallRecord(nil), h.toolCalls...),
		Duration:  duration,
	}
	h.mu.Unlock()

	e.cfg.Logger.Debug("fragment run",
		"fragment", inv.Fragment.Name,
		"role", string(inv.Fragment.Role),
		"capability", inv.Capability.String(),
		"tool_calls", len(result.ToolCalls),
		"duration", duration,
		"error", err,
	)

	if err != nil {
		return result, err
	}
	result.Value = value
	return result, nil
}

func (e *Executor) run(ctx context.Context, h *invocation) (any, error) {
	frag := h.inv.Fragment
	fail := func(msg string, err error) error {
		return &SandboxError{Kind: KindFragmentException, Fragment: frag.Name, Message: msg, Err: err}
	}

	src := wrapSource(frag.Source)
	if err := checkSource(src); err != nil {
		return nil, fail("rejected source", err)
	}

	i := interp.New(interp.Options{
		Stdout:               stdoutWriter{h},
		Stderr:               io.Discard,
		SourcecodeFilesystem: emptyFS{},
	})
	if err := i.Use(stdlibExports); err != nil {
		return nil, fail("load stdlib", err)
	}
	if err := i.Use(h.exports()); err != nil {
		return nil, fail("load host bindings", err)
	}

	if _, err := i.EvalWithContext(ctx, src); err != nil {
		if ctxErr := e.contextError(ctx, frag); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fail("evaluation failed", err)
	}

	entry := frag.Role.Entry()
	fn, err := i.Eval("main." + entry)
	if err != nil {
		return nil, fail(entry+" function not found", err)
	}

	call, err := bindEntry(frag.Role, fn.Interface(), h.inv.Input)
	if err != nil {
		return nil, fail("cannot call "+entry, err)
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := call()
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, e.contextError(ctx, frag)
	}

	if err := h.violation(); err != nil {
		return nil, err
	}
	if out.err != nil {
		var capErr *CapabilityError
		if errors.As(out.err, &capErr) {
			return nil, capErr
		}
		return nil, fail("fragment returned error", out.err)
	}

	value, err := normalize(out.value)
	if err != nil {
		return nil, fail("result is not JSON-serializable", err)
	}
	return value, nil
}

// contextError maps a finished context onto the sandbox taxonomy.
func (e *Executor) contextError(ctx context.Context, frag Fragment) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return &SandboxError{
			Kind:     KindTimeout,
			Fragment: frag.Name,
			Message:  fmt.Sprintf("exceeded %v", e.cfg.Timeout),
			Err:      err,
		}
	case err != nil:
		return err
	}
	return nil
}

// bindEntry adapts the interpreted entry point to a plain call.
func bindEntry(role Role, fn any, input any) (func() (any, error), error) {
	switch role {
	case RoleTransform:
		f, ok := fn.(func(any) (any, error))
		if !ok {
			return nil, fmt.Errorf("expected func(any) (any, error), got %T", fn)
		}
		value := cloneValue(input)
		return func() (any, error) { return f(value) }, nil
	default:
		f, ok := fn.(func(map[string]any) (any, error))
		if !ok {
			return nil, fmt.Errorf("expected func(map[string]any) (any, error), got %T", fn)
		}
		args := map[string]any{}
		if input != nil {
			m, ok := cloneValue(input).(map[string]any)
			if !ok {
				return nil, fmt.Errorf("input must be an object, got %T", input)
			}
			if m != nil {
				args = m
			}
		}
		return func() (any, error) { return f(args) }, nil
	}
}

// stdoutWriter routes the interpreter's standard output into the run's buffer.
type stdoutWriter struct {
	h *invocation
}

func (w stdoutWriter) Write(p []byte) (int, error) {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	return w.h.stdout.Write(p)
}
