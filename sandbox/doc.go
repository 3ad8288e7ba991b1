// Package sandbox runs Go code fragments carried as data.
//
// Each run constructs a fresh yaegi interpreter, so concurrent runs never
// share interpreter state. The interpreter sees a fixed allowlist of
// standard library packages (see [AllowedPackages]) and a per-run "host"
// package. Nothing else is importable and no source filesystem is mounted.
//
// # Entry Points
//
// The fragment's [Role] selects the function it must define:
//
//	func Handle(args map[string]any) (any, error)      // RoleHandler
//	func Transform(value any) (any, error)             // RoleTransform
//	func Orchestrate(args map[string]any) (any, error) // RoleOrchestration
//
// A missing package clause is supplied as "package main". Fragments run
// entirely on the calling goroutine: go statements are rejected before
// compilation and time.AfterFunc is not exported.
//
// # Host Bindings
//
//   - host.Println(args ...any): captured into [Result].Stdout
//   - host.Clone(v any) any: structured deep copy
//   - host.Cancelled() bool: reports whether the run deadline has passed
//   - host.Fetch(url string, opts map[string]any) (map[string]any, error):
//     only under [CapNetwork]; the URL's host must match the allowlist
//     before any connection is opened
//   - host.CallTool(name string, args map[string]any) (any, error):
//     only for orchestration fragments
//
// # Failure Modes
//
// Exceeding the timeout yields [*SandboxError] with [KindTimeout]. A compile
// error, returned error, or panic yields [KindFragmentException]. A denied
// capability yields [*CapabilityError] even if the fragment discards the
// error it was handed.
package sandbox
