package plugin

import (
	"sort"
	"strings"
)

// GenerateDTS renders the `.d.ts` declaration for the `editor` global from
// apiSpecs (spec §9: "a build-time binding generator emits a `.d.ts` file
// from the same method table the native host binds, so plugin authors get
// real autocomplete and type checking"). cmd/gendts invokes this to produce
// the file plugin authors import against.
func GenerateDTS() string {
	specs := append([]apiMethodSpec(nil), apiSpecs...)
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	var b strings.Builder
	b.WriteString("// Code generated by cmd/gendts from internal/plugin's API table. DO NOT EDIT.\n\n")
	b.WriteString("interface Editor {\n")
	for _, s := range specs {
		if s.Doc != "" {
			b.WriteString("  /** " + s.Doc + " */\n")
		}
		b.WriteString("  " + s.Name + "(" + dtsParams(s.Params) + "): " + dtsReturn(s) + ";\n")
	}
	b.WriteString("  log(...args: unknown[]): void;\n")
	b.WriteString("}\n\ndeclare function getEditor(): Editor;\n")
	return b.String()
}

func dtsParams(params []apiParam) string {
	parts := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		typ := p.Type
		if strings.HasPrefix(typ, "...") {
			name = "..." + name
			typ = strings.TrimPrefix(typ, "...")
		}
		parts[i] = name + ": " + typ
	}
	return strings.Join(parts, ", ")
}

func dtsReturn(s apiMethodSpec) string {
	switch s.Kind {
	case apiPromise:
		return "Promise<" + s.Returns + ">"
	case apiThenable:
		return "Promise<" + s.Returns + "> & { kill(): void }"
	default:
		return s.Returns
	}
}
