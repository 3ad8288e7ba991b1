// Package stage defines the pipeline stage metadata model and its wire format.
//
// A pipeline is a singly linked chain of stages. Each stage serves a metadata
// document from a hidden introspection tool; the document names the stage
// kind, a version, and the address of the stage it was layered on top of
// ("upstream_url", null at the chain root).
//
// # Variants
//
//   - [KindRoot]: directly implemented tools, each carrying a Go code
//     fragment, plus a network domain allowlist.
//   - [KindTransform]: hidden tool names, routing entries that rename or
//     reshape upstream tools, and synthetic tools defined by orchestration code.
//   - [KindPresentation]: markup bound to root tools.
//
// [Decode] validates the fields each variant requires and reports violations
// as [*ProtocolError], which matches [ErrProtocol] under errors.Is.
package stage
