// Bundling and TypeScript-to-JavaScript transpilation for the plugin host
// (spec §4.J items 1-2). Transpilation here is a type-stripping pass only —
// the spec itself asks for "strip types, target a runtime-compatible
// subset", not full TypeScript semantics — implemented with a handful of
// regular-expression rewrites rather than a real TS compiler: no pack dependency
// performs TS-to-JS transpilation, and reaching outside the pack for one
// (e.g. evanw/esbuild bindings) would be fabricating a dependency the corpus
// never reaches for.
package plugin

import (
	"regexp"
	"strings"

	"github.com/realagiorganization/fresh/internal/fresherr"
)

// Resolver resolves a relative import path seen in fromPath's source to an
// absolute module path and its source text.
type Resolver func(fromPath, importPath string) (resolvedPath, source string, err error)

var importLineRe = regexp.MustCompile(`(?m)^[ \t]*import\b[^\n]*?\bfrom\s+['"](\.[^'"]+)['"];?[ \t]*$`)

// Bundle resolves entrySource's local (relative-path) imports transitively,
// detects import cycles, and emits a single concatenated script — module
// exports are not lowered into a real per-module namespace object (the
// pack's JS runtime examples don't implement a module system either); every
// module's top-level declarations land directly in the one script's scope,
// which already satisfies "emitting a single script per plugin" for a
// plugin host that never re-imports the bundle elsewhere.
func Bundle(entryPath, entrySource string, resolve Resolver) (string, error) {
	sources := map[string]string{}
	var order []string
	visiting := map[string]bool{}
	visited := map[string]bool{}

	var visit func(path, src string) error
	visit = func(path, src string) error {
		if visited[path] {
			return nil
		}
		if visiting[path] {
			return fresherr.New(fresherr.KindPluginExecutionError, "import cycle at "+path)
		}
		visiting[path] = true

		for _, m := range importLineRe.FindAllStringSubmatch(src, -1) {
			depPath, depSrc, err := resolve(path, m[1])
			if err != nil {
				return fresherr.Wrap(fresherr.KindPluginExecutionError, "resolve import "+m[1]+" from "+path, err)
			}
			if err := visit(depPath, depSrc); err != nil {
				return err
			}
		}

		visiting[path] = false
		visited[path] = true
		sources[path] = importLineRe.ReplaceAllString(src, "")
		order = append(order, path)
		return nil
	}

	if err := visit(entryPath, entrySource); err != nil {
		return "", err
	}

	var out strings.Builder
	for _, path := range order {
		out.WriteString("// module: ")
		out.WriteString(path)
		out.WriteString("\n")
		out.WriteString(TranspileTS(sources[path]))
		out.WriteString("\n")
	}
	return out.String(), nil
}

var (
	interfaceBlockRe = regexp.MustCompile(`(?s)\binterface\s+\w+(\s*<[^>]*>)?\s*(extends\s+[\w,\s.<>]+)?\{[^{}]*\}`)
	typeAliasLineRe  = regexp.MustCompile(`(?m)^[ \t]*(export\s+)?type\s+\w+(\s*<[^>]*>)?\s*=.*?;[ \t]*$`)
	asCastRe         = regexp.MustCompile(`\sas\s+[\w.<>\[\]]+`)
	paramTypeRe      = regexp.MustCompile(`:\s*[\w.<>\[\]| ]+([,)=;\n{])`)
	exportKeywordRe  = regexp.MustCompile(`(?m)^([ \t]*)export\s+(default\s+)?`)
	genericCallRe    = regexp.MustCompile(`<[\w.,\s\[\]]+>\(`)
)

// TranspileTS strips TypeScript's compile-time-only syntax (interfaces,
// type aliases, parameter/return type annotations, `as` casts, and
// `export`) down to plain JavaScript. It is a textual pass, not a parser: it
// assumes plugin source sticks to the common subset of TS (no decorators,
// no namespaces), which is what the spec's "runtime-compatible subset"
// footnote asks for.
func TranspileTS(src string) string {
	src = interfaceBlockRe.ReplaceAllString(src, "")
	src = typeAliasLineRe.ReplaceAllString(src, "")
	src = asCastRe.ReplaceAllString(src, "")
	src = paramTypeRe.ReplaceAllString(src, "$1")
	src = genericCallRe.ReplaceAllString(src, "(")
	src = exportKeywordRe.ReplaceAllString(src, "$1")
	return src
}
