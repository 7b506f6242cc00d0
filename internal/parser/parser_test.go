package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		sig   string
		class string
		name  string
	}{
		{"foo", "", "foo"},
		{"ClassA::foo", "ClassA", "foo"},
		{"ClassA.foo", "ClassA", "foo"},
		{"ns::ClassA::foo", "ns::ClassA", "foo"},
		{"ClassA::foo(int a, int b)", "ClassA", "foo"},
		{"  bar  ", "", "bar"},
	}
	for _, tt := range tests {
		class, name := ParseSignature(tt.sig)
		assert.Equal(t, tt.class, class, tt.sig)
		assert.Equal(t, tt.name, name, tt.sig)
	}
}

func TestFindFunction(t *testing.T) {
	funcs := []Function{
		{Class: "A", Name: "foo", StartLine: 1, EndLine: 3},
		{Class: "B", Name: "foo", StartLine: 5, EndLine: 7},
		{Class: "", Name: "bar", StartLine: 9, EndLine: 11},
	}

	f, ok := FindFunction(funcs, "B::foo")
	require.True(t, ok)
	assert.Equal(t, 5, f.StartLine)

	// No class: first same-name match wins.
	f, ok = FindFunction(funcs, "foo")
	require.True(t, ok)
	assert.Equal(t, "A", f.Class)

	// Unknown class falls back to same-name match.
	f, ok = FindFunction(funcs, "C::foo")
	require.True(t, ok)
	assert.Equal(t, "A", f.Class)

	_, ok = FindFunction(funcs, "missing")
	assert.False(t, ok)
}

func TestForPath(t *testing.T) {
	for _, path := range []string{"a.go", "b.py", "c.cpp", "d.ts", "e.js", "f.h"} {
		h, err := ForPath(path)
		require.NoError(t, err, path)
		require.NotNil(t, h)
	}
	_, err := ForPath("readme.md")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.False(t, Supported("notes.txt"))
}

func TestParseFunctionsGo(t *testing.T) {
	src := []byte(`package demo

func Free() int {
	return 1
}

type Box struct{}

func (b *Box) Open() error {
	return nil
}
`)
	h, err := ForPath("demo.go")
	require.NoError(t, err)
	funcs, err := h.ParseFunctions("demo.go", src)
	require.NoError(t, err)
	require.Len(t, funcs, 2)

	assert.Equal(t, Function{Name: "Free", StartLine: 3, EndLine: 5}, funcs[0])
	assert.Equal(t, Function{Class: "Box", Name: "Open", StartLine: 9, EndLine: 11}, funcs[1])
}

func TestParseFunctionsPython(t *testing.T) {
	src := []byte(`def top():
    pass


class Widget:
    def render(self):
        x = 1
        return x
`)
	h, err := ForPath("demo.py")
	require.NoError(t, err)
	funcs, err := h.ParseFunctions("demo.py", src)
	require.NoError(t, err)
	require.Len(t, funcs, 2)

	assert.Equal(t, Function{Name: "top", StartLine: 1, EndLine: 2}, funcs[0])
	assert.Equal(t, Function{Class: "Widget", Name: "render", StartLine: 6, EndLine: 8}, funcs[1])
	assert.Equal(t, ":", h.OpenDelimiter())
}

func TestParseFunctionsCpp(t *testing.T) {
	src := []byte(`#include <iostream>

void ClassA::foo() {
	return;
}

int bar() {
	return 0;
}
`)
	h, err := ForPath("demo.cpp")
	require.NoError(t, err)
	funcs, err := h.ParseFunctions("demo.cpp", src)
	require.NoError(t, err)
	require.Len(t, funcs, 2)

	assert.Equal(t, Function{Class: "ClassA", Name: "foo", StartLine: 3, EndLine: 5}, funcs[0])
	assert.Equal(t, Function{Name: "bar", StartLine: 7, EndLine: 9}, funcs[1])
}
