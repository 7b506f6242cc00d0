// Package diff computes line diffs for edit confirmation prompts using the
// sergi/go-diff engine with a line-level reduction.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType classifies a diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is a single line of a hunk.
type Line struct {
	Type    LineType
	Content string
}

// Hunk groups consecutive changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff is the diff of one file.
type FileDiff struct {
	Path  string
	IsNew bool
	Hunks []Hunk
}

const contextLines = 3

// Compute diffs oldContent against newContent for path.
func Compute(path, oldContent, newContent string) *FileDiff {
	fd := &FileDiff{Path: path, IsNew: oldContent == ""}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	fd.Hunks = group(toOps(diffs))
	return fd
}

// HasChanges reports whether the diff contains any added or removed line.
func (fd *FileDiff) HasChanges() bool {
	return len(fd.Hunks) > 0
}

// RenderUnified renders the diff in unified format, one line per element.
func (fd *FileDiff) RenderUnified() []string {
	if !fd.HasChanges() {
		return nil
	}
	out := make([]string, 0, 8)
	if fd.IsNew {
		out = append(out, "--- /dev/null")
	} else {
		out = append(out, "--- a/"+fd.Path)
	}
	out = append(out, "+++ b/"+fd.Path)
	for _, h := range fd.Hunks {
		out = append(out, fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				out = append(out, "+"+l.Content)
			case LineRemoved:
				out = append(out, "-"+l.Content)
			default:
				out = append(out, " "+l.Content)
			}
		}
	}
	return out
}

type op struct {
	typ     LineType
	oldLine int // 0-indexed, -1 for additions
	newLine int // 0-indexed, -1 for removals
	content string
}

func toOps(diffs []diffmatchpatch.Diff) []op {
	var ops []op
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text != "\n" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, op{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, op{LineRemoved, oldLine, -1, line})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, op{LineAdded, -1, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

func group(ops []op) []Hunk {
	var hunks []Hunk

	i := 0
	for i < len(ops) {
		if ops[i].typ == LineContext {
			i++
			continue
		}

		// Found a change; open a hunk with leading context.
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		h := Hunk{}
		lastChange := i

		j := start
		for j < len(ops) {
			o := ops[j]
			if o.typ != LineContext {
				lastChange = j
			} else if j-lastChange > contextLines {
				break
			}
			h.Lines = append(h.Lines, Line{Type: o.typ, Content: o.content})
			j++
		}
		h.OldStart = lineStart(ops[start].oldLine)
		h.NewStart = lineStart(ops[start].newLine)
		for _, l := range h.Lines {
			if l.Type != LineAdded {
				h.OldCount++
			}
			if l.Type != LineRemoved {
				h.NewCount++
			}
		}
		hunks = append(hunks, h)
		i = j
	}
	return hunks
}

func lineStart(zeroIndexed int) int {
	if zeroIndexed < 0 {
		return 0
	}
	return zeroIndexed + 1
}
