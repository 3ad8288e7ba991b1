// Package build ties the metadata crawler and the artifact synthesizer
// together.
//
// A Builder crawls a stage chain from its outermost address, analyzes the
// collected descriptions and writes the synthesized bundle to a directory:
//
//	b, err := build.New(build.Options{Synth: synth.Options{Module: "example.com/weather"}})
//	if err != nil {
//		return err
//	}
//	res, err := b.Build(ctx, "http://localhost:7003/mcp", "./weather")
//
// Inspect performs the same crawl and analysis without writing anything,
// which is useful to preview the exposed tool set of a chain.
//
// Crawl and protocol failures surface as the crawl package's typed errors.
// In strict mode, reference problems fail both operations with a
// *synth.ValidationError.
package build
