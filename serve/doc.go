// Package serve exposes a synthesized bundle as an MCP server over
// streamable HTTP.
//
// Generated artifacts embed their bundle and call Run with
// OptionsFromEnv; the toolsynth CLI serves bundle directories the same way.
// The MCP endpoint lives at MCPPath, optionally behind a bearer token, and
// an unauthenticated health probe at HealthPath reports the tool and
// resource counts.
package serve
