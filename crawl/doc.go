// Package crawl walks a pipeline of stages from the outermost address back
// to the root stage.
//
// Every stage answers the IntrospectionTool with its metadata document.
// Crawler performs one connect-call-close round trip per stage, following
// upstream pointers until a root is reached, and returns the stages
// root-first:
//
//	c, err := crawl.New(crawl.Config{})
//	if err != nil {
//		return err
//	}
//	stages, err := c.Crawl(ctx, "http://localhost:8080/mcp")
//
// Crawling is strictly sequential. A repeated address yields a
// CycleError; an unreachable stage yields a ConnectionError; a malformed
// document yields a stage.ProtocolError carrying the offending address.
//
// ServeStage lets a stage server (or a test) answer introspection calls.
package crawl
