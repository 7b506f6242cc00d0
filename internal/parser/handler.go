// Package parser extracts function and class boundaries from source files.
// The editor uses these to resolve structural anchors (after_function,
// within_function) when applying LLM-produced changes. Parsing is done with
// tree-sitter grammars registered per file extension.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage is returned when no handler is registered for a
// file's extension. Anchor resolution must fail cleanly in that case.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Function describes one function or method found in a source file.
// Lines are 1-indexed; EndLine includes the closing line of the body.
type Function struct {
	Class     string // enclosing class or receiver type, "" for free functions
	Name      string
	StartLine int
	EndLine   int
}

// Handler provides language-specific parsing for one family of extensions.
type Handler interface {
	// Language returns a human-readable language name.
	Language() string
	// ParseFunctions extracts all functions and methods from content.
	ParseFunctions(path string, content []byte) ([]Function, error)
	// OpenDelimiter returns the token that opens a function body: "{" for
	// brace languages, ":" for Python.
	OpenDelimiter() string
}

// ParseSignature splits a target signature into optional class and name.
// Accepts "Class::name" and "Class.name"; a bare name has no class.
func ParseSignature(sig string) (class, name string) {
	sig = strings.TrimSpace(sig)
	// Strip a trailing parameter list if the model included one.
	if i := strings.IndexByte(sig, '('); i >= 0 {
		sig = sig[:i]
	}
	if i := strings.LastIndex(sig, "::"); i >= 0 {
		return strings.TrimSpace(sig[:i]), strings.TrimSpace(sig[i+2:])
	}
	if i := strings.LastIndexByte(sig, '.'); i >= 0 {
		return strings.TrimSpace(sig[:i]), strings.TrimSpace(sig[i+1:])
	}
	return "", sig
}

// FindFunction locates the best match for a signature among parsed
// functions: exact class+name first, then a same-name match ignoring class.
func FindFunction(funcs []Function, sig string) (Function, bool) {
	class, name := ParseSignature(sig)
	if class != "" {
		for _, f := range funcs {
			if f.Class == class && f.Name == name {
				return f, true
			}
		}
	}
	for _, f := range funcs {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

var handlers = map[string]Handler{}

func register(h Handler, exts ...string) {
	for _, ext := range exts {
		handlers[ext] = h
	}
}

// ForPath returns the handler for a file path's extension.
func ForPath(path string) (Handler, error) {
	ext := strings.ToLower(path)
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		ext = ext[i:]
	}
	h, ok := handlers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	return h, nil
}

// Supported reports whether structural anchors can be resolved for path.
func Supported(path string) bool {
	_, err := ForPath(path)
	return err == nil
}
