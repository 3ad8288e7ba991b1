// Package artifact defines the generated bundle and its runtime IR.
//
// A bundle is a directory-shaped set of files:
//
//	go.mod                              module of the generated program
//	main.go                             entry point, embeds the bundle
//	manifest.json                       [Package]: dependencies, files, stage chain
//	runtime.json                        [Manifest]: listing, routing and fragment tables
//	fragments/tools/<name>.go.frag      root tool handlers, verbatim
//	fragments/transforms/<name>.json    [TransformDescriptor] per modified route
//	fragments/orchestrations/<name>.go.frag
//	ui/<resource>.html                  presentation markup
//
// [Bundle.WriteDir] publishes a bundle atomically; [Load] reads the runtime
// IR back from any fs.FS, such as an embed.FS or os.DirFS.
package artifact
