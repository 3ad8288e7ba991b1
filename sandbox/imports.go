package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// hostPackage is the import path of the per-invocation host bindings.
const hostPackage = "host"

// allowedPackages is the stdlib subset visible to fragments.
var allowedPackages = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// AllowedPackages returns the import paths fragments may use besides "host".
func AllowedPackages() []string {
	return slices.Clone(allowedPackages)
}

// withheldSymbols are stdlib functions that run fragment code on a goroutine
// the executor does not own.
var withheldSymbols = map[string][]string{
	"time/time": {"AfterFunc"},
}

// stdlibExports is the allowlisted slice of stdlib.Symbols, built once.
var stdlibExports = func() interp.Exports {
	out := make(interp.Exports, len(allowedPackages))
	for _, p := range allowedPackages {
		key := p + "/" + path.Base(p)
		syms, ok := stdlib.Symbols[key]
		if !ok {
			continue
		}
		if withheld := withheldSymbols[key]; len(withheld) > 0 {
			syms = maps.Clone(syms)
			for _, name := range withheld {
				delete(syms, name)
			}
		}
		out[key] = syms
	}
	return out
}()

// wrapSource supplies a package clause when the fragment has none.
func wrapSource(src string) string {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "", src, parser.PackageClauseOnly); err == nil {
		return src
	}
	return "package main\n\n" + src
}

// checkSource parses the fragment, rejects imports outside the allowlist and
// rejects go statements. A panic on a goroutine started by the fragment
// cannot be recovered by the executor.
func checkSource(src string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "fragment.go", src, parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	if f.Name.Name != "main" {
		return fmt.Errorf("fragment must be package main, got %q", f.Name.Name)
	}
	var forbidden []string
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return err
		}
		if p == hostPackage || slices.Contains(allowedPackages, p) {
			continue
		}
		forbidden = append(forbidden, p)
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}

	var goStmt *ast.GoStmt
	ast.Inspect(f, func(n ast.Node) bool {
		if g, ok := n.(*ast.GoStmt); ok && goStmt == nil {
			goStmt = g
		}
		return goStmt == nil
	})
	if goStmt != nil {
		return fmt.Errorf("line %d: go statements are not allowed", fset.Position(goStmt.Pos()).Line)
	}
	return nil
}

// emptyFS hides the host filesystem from the interpreter's source loader.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
