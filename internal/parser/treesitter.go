package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jrdev/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// tsHandler implements Handler on top of one tree-sitter grammar.
type tsHandler struct {
	name    string
	lang    *sitter.Language
	delim   string
	extract func(root *sitter.Node, content []byte) []Function
}

func (h *tsHandler) Language() string      { return h.name }
func (h *tsHandler) OpenDelimiter() string { return h.delim }

func (h *tsHandler) ParseFunctions(path string, content []byte) ([]Function, error) {
	start := time.Now()
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(h.lang)

	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("%s parse failed for %s: %w", h.name, path, err)
	}
	defer tree.Close()

	funcs := h.extract(tree.RootNode(), content)
	logging.Get(logging.CategoryEditor).Debug("parsed %s: %d functions in %v", path, len(funcs), time.Since(start))
	return funcs, nil
}

func init() {
	register(&tsHandler{name: "go", lang: golang.GetLanguage(), delim: "{", extract: extractGo}, ".go")
	register(&tsHandler{name: "python", lang: python.GetLanguage(), delim: ":", extract: extractPython}, ".py")
	register(&tsHandler{name: "cpp", lang: cpp.GetLanguage(), delim: "{", extract: extractCpp},
		".cpp", ".cc", ".cxx", ".hpp", ".h", ".hxx", ".c")
	js := &tsHandler{name: "javascript", lang: javascript.GetLanguage(), delim: "{", extract: extractJS}
	register(js, ".js", ".jsx", ".mjs", ".cjs")
	ts := &tsHandler{name: "typescript", lang: typescript.GetLanguage(), delim: "{", extract: extractJS}
	register(ts, ".ts", ".tsx")
}

func lines(n *sitter.Node) (start, end int) {
	return int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}

func extractGo(root *sitter.Node, content []byte) []Function {
	var funcs []Function
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				s, e := lines(n)
				funcs = append(funcs, Function{Name: name.Content(content), StartLine: s, EndLine: e})
			}
		case "method_declaration":
			name := n.ChildByFieldName("name")
			recv := n.ChildByFieldName("receiver")
			if name != nil {
				s, e := lines(n)
				funcs = append(funcs, Function{
					Class:     receiverType(recv, content),
					Name:      name.Content(content),
					StartLine: s,
					EndLine:   e,
				})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return funcs
}

// receiverType pulls the bare type name out of a Go method receiver,
// dropping the variable name, pointer star, and type parameters.
func receiverType(recv *sitter.Node, content []byte) string {
	if recv == nil {
		return ""
	}
	text := recv.Content(content)
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimPrefix(typ, "*")
	if i := strings.IndexByte(typ, '['); i >= 0 {
		typ = typ[:i]
	}
	return typ
}

func extractPython(root *sitter.Node, content []byte) []Function {
	var funcs []Function
	var walk func(n *sitter.Node, class string)
	walk = func(n *sitter.Node, class string) {
		switch n.Type() {
		case "class_definition":
			name := ""
			if nn := n.ChildByFieldName("name"); nn != nil {
				name = nn.Content(content)
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				walk(n.NamedChild(i), name)
			}
			return
		case "function_definition":
			if nn := n.ChildByFieldName("name"); nn != nil {
				s, e := lines(n)
				funcs = append(funcs, Function{Class: class, Name: nn.Content(content), StartLine: s, EndLine: e})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), class)
		}
	}
	walk(root, "")
	return funcs
}

func extractJS(root *sitter.Node, content []byte) []Function {
	var funcs []Function
	var walk func(n *sitter.Node, class string)
	walk = func(n *sitter.Node, class string) {
		switch n.Type() {
		case "class_declaration", "class":
			name := ""
			if nn := n.ChildByFieldName("name"); nn != nil {
				name = nn.Content(content)
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				walk(n.NamedChild(i), name)
			}
			return
		case "function_declaration", "generator_function_declaration":
			if nn := n.ChildByFieldName("name"); nn != nil {
				s, e := lines(n)
				funcs = append(funcs, Function{Name: nn.Content(content), StartLine: s, EndLine: e})
			}
		case "method_definition":
			if nn := n.ChildByFieldName("name"); nn != nil {
				s, e := lines(n)
				funcs = append(funcs, Function{Class: class, Name: nn.Content(content), StartLine: s, EndLine: e})
			}
		case "variable_declarator":
			// const f = () => {} and const f = function() {}
			nn := n.ChildByFieldName("name")
			val := n.ChildByFieldName("value")
			if nn != nil && val != nil &&
				(val.Type() == "arrow_function" || val.Type() == "function_expression" || val.Type() == "function") {
				s, e := lines(n)
				funcs = append(funcs, Function{Class: class, Name: nn.Content(content), StartLine: s, EndLine: e})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), class)
		}
	}
	walk(root, "")
	return funcs
}

func extractCpp(root *sitter.Node, content []byte) []Function {
	var funcs []Function
	var walk func(n *sitter.Node, class string)
	walk = func(n *sitter.Node, class string) {
		switch n.Type() {
		case "class_specifier", "struct_specifier":
			name := class
			if nn := n.ChildByFieldName("name"); nn != nil {
				name = nn.Content(content)
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				walk(n.NamedChild(i), name)
			}
			return
		case "function_definition":
			cls, name := cppDeclaratorName(n, content)
			if cls == "" {
				cls = class
			}
			if name != "" {
				s, e := lines(n)
				funcs = append(funcs, Function{Class: cls, Name: name, StartLine: s, EndLine: e})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), class)
		}
	}
	walk(root, "")
	return funcs
}

// cppDeclaratorName digs through a function_definition's declarator chain to
// the identifier, handling qualified names like ClassA::foo.
func cppDeclaratorName(n *sitter.Node, content []byte) (class, name string) {
	decl := n.ChildByFieldName("declarator")
	for decl != nil && decl.Type() != "function_declarator" {
		decl = decl.ChildByFieldName("declarator")
	}
	if decl == nil {
		return "", ""
	}
	inner := decl.ChildByFieldName("declarator")
	if inner == nil {
		return "", ""
	}
	switch inner.Type() {
	case "qualified_identifier":
		text := inner.Content(content)
		if i := strings.LastIndex(text, "::"); i >= 0 {
			return text[:i], text[i+2:]
		}
		return "", text
	case "identifier", "field_identifier", "destructor_name", "operator_name":
		return "", inner.Content(content)
	}
	return "", inner.Content(content)
}
