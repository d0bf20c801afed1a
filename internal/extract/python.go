package extract

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"repoatlas/internal/model"
)

// Python returns the Python language definition.
func Python() *Language {
	return &Language{
		Name:       "python",
		Grammar:    python.GetLanguage(),
		Extensions: []string{".py", ".pyi"},
		walk:       walkPython,
	}
}

type pyWalker struct {
	src     []byte
	res     Result
	imports map[string]struct{}
	calls   map[int]map[string]struct{}
}

func walkPython(root *sitter.Node, src []byte) Result {
	w := &pyWalker{
		src:     src,
		imports: make(map[string]struct{}),
		calls:   make(map[int]map[string]struct{}),
	}
	w.visit(root, -1)

	for idx, set := range w.calls {
		w.res.Functions[idx].Calls = sortedKeys(set)
	}
	w.res.Imports = sortedKeys(w.imports)
	return w.res
}

// visit walks n in source order. fn is the index of the innermost function
// whose body encloses n, or -1 at module or class level.
func (w *pyWalker) visit(n *sitter.Node, fn int) {
	switch n.Type() {
	case "function_definition":
		idx := w.addFunction(n)
		if p := n.ChildByFieldName("parameters"); p != nil {
			w.visit(p, fn)
		}
		if rt := n.ChildByFieldName("return_type"); rt != nil {
			w.visit(rt, fn)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			w.visit(body, idx)
		}
		return
	case "class_definition":
		w.addClass(n)
	case "import_statement":
		w.addImport(n)
		return
	case "import_from_statement", "future_import_statement":
		w.addFromImport(n)
		return
	case "call":
		if fn >= 0 {
			if name := calleeName(n.ChildByFieldName("function"), w.src); name != "" {
				set := w.calls[fn]
				if set == nil {
					set = make(map[string]struct{})
					w.calls[fn] = set
				}
				set[name] = struct{}{}
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), fn)
	}
}

func (w *pyWalker) addFunction(n *sitter.Node) int {
	f := model.Function{
		Name:      fieldText(n, "name", w.src),
		Line:      int(n.StartPoint().Row) + 1,
		Args:      positionalArgs(n.ChildByFieldName("parameters"), w.src),
		Docstring: docstring(n.ChildByFieldName("body"), w.src),
	}
	w.res.Functions = append(w.res.Functions, f)
	return len(w.res.Functions) - 1
}

func (w *pyWalker) addClass(n *sitter.Node) {
	c := model.Class{
		Name:      fieldText(n, "name", w.src),
		Line:      int(n.StartPoint().Row) + 1,
		Methods:   []string{},
		Docstring: docstring(n.ChildByFieldName("body"), w.src),
	}
	if body := n.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			def := body.NamedChild(i)
			if def.Type() == "decorated_definition" {
				def = def.ChildByFieldName("definition")
			}
			if def != nil && def.Type() == "function_definition" {
				c.Methods = append(c.Methods, fieldText(def, "name", w.src))
			}
		}
	}
	w.res.Classes = append(w.res.Classes, c)
}

// addImport handles `import a.b` and `import a.b as c`.
func (w *pyWalker) addImport(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			w.addModule(child.Content(w.src))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				w.addModule(name.Content(w.src))
			}
		}
	}
}

// addFromImport records the module of `from x.y import z`. A purely relative
// `from . import z` names no module and is skipped; `from .x import z`
// records x.
func (w *pyWalker) addFromImport(n *sitter.Node) {
	if n.Type() == "future_import_statement" {
		w.addModule("__future__")
		return
	}
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	if mod.Type() == "relative_import" {
		for i := 0; i < int(mod.NamedChildCount()); i++ {
			if child := mod.NamedChild(i); child.Type() == "dotted_name" {
				w.addModule(child.Content(w.src))
			}
		}
		return
	}
	w.addModule(mod.Content(w.src))
}

func (w *pyWalker) addModule(name string) {
	name = strings.Join(strings.Fields(name), "")
	if name != "" {
		w.imports[name] = struct{}{}
	}
}

// positionalArgs returns the positional-or-keyword parameter names: names
// before a `/` are positional-only and dropped, and collection stops at the
// first `*`, `*args` or `**kwargs`.
func positionalArgs(params *sitter.Node, src []byte) []string {
	args := []string{}
	if params == nil {
		return args
	}
	for i := 0; i < int(params.ChildCount()); i++ {
		p := params.Child(i)
		switch p.Type() {
		case "identifier":
			args = append(args, p.Content(src))
		case "default_parameter", "typed_default_parameter":
			args = append(args, fieldText(p, "name", src))
		case "typed_parameter":
			first := p.NamedChild(0)
			if first == nil || first.Type() != "identifier" {
				return args
			}
			args = append(args, first.Content(src))
		case "positional_separator", "/":
			args = args[:0]
		case "keyword_separator", "*", "list_splat_pattern", "dictionary_splat_pattern":
			return args
		}
	}
	return args
}

// calleeName returns the called name for `f(...)` and `obj.f(...)`.
func calleeName(fn *sitter.Node, src []byte) string {
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		return fieldText(fn, "attribute", src)
	}
	return ""
}

// docstring returns the cleaned docstring of a function or class body, or
// nil when the first statement is not a plain string literal.
func docstring(body *sitter.Node, src []byte) *string {
	if body == nil {
		return nil
	}
	var first *sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if c := body.NamedChild(i); c.Type() != "comment" {
			first = c
			break
		}
	}
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return nil
	}

	lit := first.NamedChild(0)
	var text string
	switch lit.Type() {
	case "string":
		v, ok := stringValue(lit.Content(src))
		if !ok {
			return nil
		}
		text = v
	case "concatenated_string":
		var sb strings.Builder
		for i := 0; i < int(lit.NamedChildCount()); i++ {
			part := lit.NamedChild(i)
			if part.Type() != "string" {
				continue
			}
			v, ok := stringValue(part.Content(src))
			if !ok {
				return nil
			}
			sb.WriteString(v)
		}
		text = sb.String()
	default:
		return nil
	}
	return model.StringPtr(cleandoc(text))
}

func fieldText(n *sitter.Node, field string, src []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Content(src)
	}
	return ""
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
