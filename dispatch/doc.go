// Package dispatch answers tool calls for a synthesized artifact.
//
// A Resolver is built from the runtime IR (runtime.json) and the fragment
// files of a bundle. Each call is resolved in a fixed order, first match
// wins:
//
//  1. Synthetic: run the orchestration fragment. Its host.CallTool reaches
//     root handlers only; naming another synthetic tool is a capability
//     violation.
//  2. Routed: run the input transform (if any), the root handler named by
//     the routing entry, then the output transform (if any). Transforms run
//     with the handler's capability.
//  3. Direct: when the chain had no transform stage, run the root handler
//     of the same name.
//  4. Unknown: ErrUnknownTool.
//
// Every fragment runs in a fresh sandbox. Call turns any failure into a
// result with IsError set so that a serving process never fails a request
// at the transport level because of a tool.
package dispatch
