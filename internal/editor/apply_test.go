package editor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConfirmer replays a fixed sequence of confirmations.
type scriptedConfirmer struct {
	answers []Confirmation
	calls   int
	prompts []string
	diffs   [][]string
}

func (s *scriptedConfirmer) ConfirmChange(prompt string, diffLines []string) (Confirmation, error) {
	s.prompts = append(s.prompts, prompt)
	s.diffs = append(s.diffs, diffLines)
	if s.calls >= len(s.answers) {
		return Confirmation{Choice: ChoiceYes}, nil
	}
	ans := s.answers[s.calls]
	s.calls++
	return ans, nil
}

func alwaysYes() *scriptedConfirmer {
	return &scriptedConfirmer{answers: []Confirmation{{Choice: ChoiceYes}}}
}

func writeTestFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApplyAddLineCountProperty(t *testing.T) {
	root := t.TempDir()
	original := "l1\nl2\nl3\n"
	path := writeTestFile(t, root, "f.txt", original)

	newContent := "a\nb"
	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{Operation: OpAdd, Filename: "f.txt", StartLine: 2, NewContent: newContent}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, []string{"f.txt"}, res.FilesChanged)

	got := readTestFile(t, path)
	assert.Equal(t, "l1\na\nb\nl2\nl3\n", got)

	// resulting count == original + count('\n', new_content) + 1
	originalCount := strings.Count(original, "\n")
	assert.Equal(t, originalCount+strings.Count(newContent, "\n")+1, strings.Count(got, "\n"))
}

func TestApplyDelete(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.txt", "l1\nl2\nl3\nl4\n")

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{Operation: OpDelete, Filename: "f.txt", StartLine: 2, EndLine: 3}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, "l1\nl4\n", readTestFile(t, path))
}

func TestApplyAddDeleteOrderedByDescendingLine(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.txt", "l1\nl2\nl3\nl4\nl5\n")

	// Both changes use original line numbers; descending application keeps
	// the earlier number valid.
	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{
		{Operation: OpAdd, Filename: "f.txt", StartLine: 2, NewContent: "added"},
		{Operation: OpDelete, Filename: "f.txt", StartLine: 4, EndLine: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, "l1\nadded\nl2\nl3\n", readTestFile(t, path))
}

func TestApplyReplace(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.py", "def foo():\n    return 1\n")

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpReplace, Filename: "f.py",
		Anchor: "    return 1", NewContent: "    return 2",
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, "def foo():\n    return 2\n", readTestFile(t, path))
}

func TestApplyReplaceAnchorMissingWarnsAndLeavesFile(t *testing.T) {
	root := t.TempDir()
	original := "def foo():\n    return 1\n"
	path := writeTestFile(t, root, "f.py", original)

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpReplace, Filename: "f.py",
		Anchor: "not in file", NewContent: "x",
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusNoChanges, res.Status)
	assert.Empty(t, res.FilesChanged)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "anchor not found")
	assert.Equal(t, original, readTestFile(t, path))
}

func TestApplyNewCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{Operation: OpNew, Filename: "pkg/sub/new.py", NewContent: "print(1)"}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, []string{filepath.Join("pkg", "sub", "new.py")}, res.FilesChanged)
	assert.Equal(t, "print(1)\n", readTestFile(t, filepath.Join(root, "pkg/sub/new.py")))
}

func TestApplyInsertAfterFunctionCpp(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 1; i <= 9; i++ {
		b.WriteString("// filler\n")
	}
	b.WriteString("void ClassA::foo() {\n")
	b.WriteString("\treturn;\n")
	b.WriteString("}\n")
	path := writeTestFile(t, root, "f.cpp", b.String())

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.cpp",
		NewContent: "void ClassA::bar(){}",
		Insert:     &InsertLocation{AfterFunction: "ClassA::foo"},
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	lines := strings.Split(readTestFile(t, path), "\n")
	// Blank separator after line 12, then the new definition.
	assert.Equal(t, "}", lines[11])
	assert.Equal(t, "", lines[12])
	assert.Equal(t, "void ClassA::bar(){}", lines[13])
}

func TestApplyInsertWithinFunctionBeforeReturn(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.py", "def foo():\n    x = 1\n    return x\n")

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.py",
		NewContent: "    x += 1",
		Insert:     &InsertLocation{WithinFunction: "foo", Position: &PositionMarker{Kind: PosBeforeReturn}},
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, "def foo():\n    x = 1\n    x += 1\n    return x\n", readTestFile(t, path))
}

func TestApplyInsertWithinFunctionAtStartWithIndentHint(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.py", "def foo():\n    return 1\n")

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.py",
		NewContent: "print('enter')",
		Insert:     &InsertLocation{WithinFunction: "foo", Position: &PositionMarker{Kind: PosAtStart}},
		IndentHint: IndentIncrease,
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, "def foo():\n    print('enter')\n    return 1\n", readTestFile(t, path))
}

func TestApplyInsertAfterMarkerMissingIsNonFatal(t *testing.T) {
	root := t.TempDir()
	original := "a\nb\n"
	path := writeTestFile(t, root, "f.txt", original)

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.txt",
		NewContent: "x",
		Insert:     &InsertLocation{AfterMarker: "NO SUCH MARKER"},
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusNoChanges, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "marker not found")
	assert.Equal(t, original, readTestFile(t, path))
}

func TestApplyInsertGlobalStartSkipsHeader(t *testing.T) {
	root := t.TempDir()
	content := "#!/usr/bin/env python\n\"\"\"Module docstring.\"\"\"\nimport os\nfrom sys import argv\n\n\ndef main():\n    pass\n"
	path := writeTestFile(t, root, "f.py", content)

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.py",
		NewContent: "VERSION = '1.0'",
		Insert:     &InsertLocation{Global: "start"},
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)

	lines := strings.Split(readTestFile(t, path), "\n")
	require.True(t, len(lines) > 6)
	assert.Equal(t, "VERSION = '1.0'", lines[6])
}

func TestApplyInsertGlobalEndSingleBlankSeparator(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.py", "def a():\n    pass\n")

	e := New(root, alwaysYes())
	_, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.py",
		NewContent: "def b():\n    pass",
		Insert:     &InsertLocation{Global: "end"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "def a():\n    pass\n\ndef b():\n    pass\n", readTestFile(t, path))
}

func TestApplyInsertBlankLinesCollapse(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.txt", "a # mark\n\n\n\nb\n")

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{
		Operation: OpInsert, Filename: "f.txt",
		NewContent: "\n\n",
		Insert:     &InsertLocation{AfterMarker: "# mark"},
	}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, "a # mark\n\n\nb\n", readTestFile(t, path))
}

func TestApplyRejectAbortsBatch(t *testing.T) {
	root := t.TempDir()
	original := "a\n"
	pathA := writeTestFile(t, root, "a.txt", original)
	pathB := writeTestFile(t, root, "b.txt", original)

	conf := &scriptedConfirmer{answers: []Confirmation{{Choice: ChoiceNo}}}
	e := New(root, conf)
	res, err := e.Apply([]FileChange{
		{Operation: OpAdd, Filename: "a.txt", StartLine: 1, NewContent: "x"},
		{Operation: OpAdd, Filename: "b.txt", StartLine: 1, NewContent: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Empty(t, res.FilesChanged)
	assert.Equal(t, original, readTestFile(t, pathA))
	assert.Equal(t, original, readTestFile(t, pathB))
	assert.Equal(t, 1, conf.calls)
}

func TestApplyRequestChangeReturnsFeedback(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.txt", "a\n")

	conf := &scriptedConfirmer{answers: []Confirmation{{Choice: ChoiceRequestChange, Message: "use tabs"}}}
	e := New(root, conf)
	res, err := e.Apply([]FileChange{{Operation: OpAdd, Filename: "a.txt", StartLine: 1, NewContent: "x"}})
	require.NoError(t, err)
	assert.Equal(t, StatusChangeRequested, res.Status)
	assert.Equal(t, "use tabs", res.RejectionReason)
}

func TestApplyEditLoopsToReconfirm(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "a.txt", "a\n")

	conf := &scriptedConfirmer{answers: []Confirmation{
		{Choice: ChoiceEdit, EditedLines: []string{"edited", "a"}},
		{Choice: ChoiceYes},
	}}
	e := New(root, conf)
	res, err := e.Apply([]FileChange{{Operation: OpAdd, Filename: "a.txt", StartLine: 1, NewContent: "x"}})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.Equal(t, 2, conf.calls)
	assert.Equal(t, "edited\na\n", readTestFile(t, path))
}

func TestApplyAcceptAllSkipsLaterConfirmations(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.txt", "a\n")
	writeTestFile(t, root, "b.txt", "b\n")

	conf := &scriptedConfirmer{answers: []Confirmation{{Choice: ChoiceAcceptAll}}}
	e := New(root, conf)
	res, err := e.Apply([]FileChange{
		{Operation: OpAdd, Filename: "a.txt", StartLine: 1, NewContent: "x"},
		{Operation: OpAdd, Filename: "b.txt", StartLine: 1, NewContent: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, res.Status)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, res.FilesChanged)
	assert.Equal(t, 1, conf.calls)
	assert.True(t, e.AcceptAll())
}

func TestApplyMissingFileSkipsGroup(t *testing.T) {
	root := t.TempDir()
	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{{Operation: OpAdd, Filename: "missing.zzz", StartLine: 1, NewContent: "x"}})
	require.NoError(t, err)
	assert.Equal(t, StatusNoChanges, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "file not found")
}

func TestApplyFilesChangedMatchesModifiedSet(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.txt", "a\n")
	writeTestFile(t, root, "b.txt", "b\n")

	e := New(root, alwaysYes())
	res, err := e.Apply([]FileChange{
		{Operation: OpAdd, Filename: "a.txt", StartLine: 1, NewContent: "x"},
		{Operation: OpReplace, Filename: "b.txt", Anchor: "nope", NewContent: "y"}, // warns, no change
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, res.FilesChanged)
}

func TestResolvePathFuzzyBasename(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "src/app/handler.py", "x\n")

	// Wrong directory, exact basename.
	got, err := resolvePath(root, "lib/handler.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src/app/handler.py"), got)
}

func TestResolvePathFuzzyInDeclaredDirectory(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "handlers.py", "x\n")

	got, err := resolvePath(root, "handler.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "handlers.py"), got)
}
