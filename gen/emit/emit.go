// Package emit renders a generated TreeModel as a standalone Go source
// file: a `//go:embed`-free reference fixture a downstream project can drop
// into a _test.go file or a corpus directory, giving cmd/genfuzz's process
// command something concrete to produce. It is an explicitly best-effort
// reference emitter, not a specified wire contract: any backend-language
// target is free to render a generated tree however it likes.
package emit

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/nihei9/genfuzz/tree"
)

// Options configures one rendering of a tree into Go source.
type Options struct {
	// PackageName is the generated file's package clause. Defaults to
	// "generated".
	PackageName string
	// VarName is the Go identifier the flattened text is assigned to.
	// Defaults to "Text".
	VarName string
}

func (o Options) withDefaults() Options {
	if o.PackageName == "" {
		o.PackageName = "generated"
	}
	if o.VarName == "" {
		o.VarName = "Text"
	}
	return o
}

// Gen renders root as a Go source file exposing its flattened text as a
// string constant, alongside a RuleNames slice enumerating every rule name
// the tree's tokens came from, sorted and deduplicated. It mirrors the
// template.New/go-format round trip the reference parser generator uses to
// assemble and normalize emitted source: build a source string from a text
// template, parse it, rename its package, then reformat the AST rather than
// hand-align emitted text.
func Gen(root *tree.Node, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	t, err := template.New("").Funcs(templateFuncs(root, opts)).Parse(srcTemplate)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	err = t.Execute(&b, nil)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", b.String(), parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("emit: generated source did not parse: %w", err)
	}
	f.Name = ast.NewIdent(opts.PackageName)

	var out bytes.Buffer
	err = format.Node(&out, fset, f)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

const srcTemplate = `// Code generated by genfuzz process. DO NOT EDIT.
package placeholder

// {{ varName }} is the flattened text of one generated derivation.
const {{ varName }} = {{ genText }}

// RuleNames lists every rule name exercised while deriving {{ varName }},
// in sorted order.
var RuleNames = {{ genRuleNames }}
`

func templateFuncs(root *tree.Node, opts Options) template.FuncMap {
	return template.FuncMap{
		"varName": func() string { return opts.VarName },
		"genText": func() string {
			return strconv.Quote(root.Value())
		},
		"genRuleNames": func() string {
			names := ruleNames(root)
			var b strings.Builder
			fmt.Fprintf(&b, "[]string{\n")
			for _, n := range names {
				fmt.Fprintf(&b, "%v,\n", strconv.Quote(n))
			}
			fmt.Fprintf(&b, "}")
			return b.String()
		},
	}
}

// ruleNames collects the distinct rule name every token in root's flattened
// sequence nearest-descends from, sorted for stable output across runs.
func ruleNames(root *tree.Node) []string {
	seen := map[string]bool{}
	for _, tok := range root.Tokens() {
		if tok.Name != "" {
			seen[tok.Name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
