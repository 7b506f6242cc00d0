package editor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"jrdev/internal/parser"
)

// errMarkerNotFound marks the after_marker miss, which warns and skips the
// change rather than failing the file's batch.
var errMarkerNotFound = errors.New("marker not found")

// insertPoint is a resolved insert location: content is spliced in before
// lines[At]; AnchorIdx is the line whose indentation the indentation_hint is
// relative to, -1 when there is no meaningful anchor line.
type insertPoint struct {
	At        int
	AnchorIdx int
	// BlankBefore requests a single separating blank line before the
	// content (after_function and global end placements).
	BlankBefore bool
}

func resolveInsert(path string, lines []string, loc *InsertLocation) (insertPoint, error) {
	switch {
	case loc.AfterFunction != "":
		f, err := findFunction(path, lines, loc.AfterFunction)
		if err != nil {
			return insertPoint{}, err
		}
		return insertPoint{At: f.EndLine, AnchorIdx: f.StartLine - 1, BlankBefore: true}, nil

	case loc.WithinFunction != "":
		return resolveWithinFunction(path, lines, loc)

	case loc.AfterMarker != "":
		for i, line := range lines {
			if strings.Contains(strings.TrimSpace(line), loc.AfterMarker) {
				return insertPoint{At: i + 1, AnchorIdx: i}, nil
			}
		}
		return insertPoint{}, fmt.Errorf("%w: %q", errMarkerNotFound, loc.AfterMarker)

	case loc.Global == "start":
		return insertPoint{At: headerEnd(path, lines), AnchorIdx: -1}, nil

	case loc.Global == "end":
		return insertPoint{At: len(lines), AnchorIdx: -1, BlankBefore: true}, nil
	}
	return insertPoint{}, fmt.Errorf("empty insert_location")
}

func findFunction(path string, lines []string, sig string) (parser.Function, error) {
	h, err := parser.ForPath(path)
	if err != nil {
		return parser.Function{}, fmt.Errorf("cannot resolve function anchor: %w", err)
	}
	funcs, err := h.ParseFunctions(path, []byte(strings.Join(lines, "\n")))
	if err != nil {
		return parser.Function{}, err
	}
	f, ok := parser.FindFunction(funcs, sig)
	if !ok {
		return parser.Function{}, fmt.Errorf("function %q not found in %s", sig, path)
	}
	return f, nil
}

func resolveWithinFunction(path string, lines []string, loc *InsertLocation) (insertPoint, error) {
	f, err := findFunction(path, lines, loc.WithinFunction)
	if err != nil {
		return insertPoint{}, err
	}
	h, _ := parser.ForPath(path)

	pos := loc.Position
	if pos == nil {
		pos = &PositionMarker{Kind: PosAtStart}
	}

	first := f.StartLine - 1
	last := f.EndLine - 1
	if last >= len(lines) {
		last = len(lines) - 1
	}

	switch pos.Kind {
	case PosAtStart:
		delim := h.OpenDelimiter()
		for i := first; i <= last; i++ {
			if strings.Contains(lines[i], delim) {
				return insertPoint{At: i + 1, AnchorIdx: i}, nil
			}
		}
		return insertPoint{}, fmt.Errorf("no body delimiter %q in %q", delim, loc.WithinFunction)

	case PosBeforeReturn:
		for i := last; i >= first; i-- {
			if strings.HasPrefix(strings.TrimSpace(lines[i]), "return") {
				return insertPoint{At: i, AnchorIdx: i}, nil
			}
		}
		// No return statement: insert before the closing line.
		return insertPoint{At: last, AnchorIdx: last}, nil

	case PosAfterLine:
		if pos.AfterLineText != "" {
			for i := first; i <= last; i++ {
				if strings.Contains(lines[i], pos.AfterLineText) {
					return insertPoint{At: i + 1, AnchorIdx: i}, nil
				}
			}
			return insertPoint{}, fmt.Errorf("line containing %q not found in %q", pos.AfterLineText, loc.WithinFunction)
		}
		idx := first + pos.AfterLineNum
		if idx > last {
			idx = last
		}
		return insertPoint{At: idx + 1, AnchorIdx: idx}, nil
	}
	return insertPoint{}, fmt.Errorf("unknown position_marker %q", pos.Kind)
}

// headerEnd returns the index of the first line past the file header:
// shebang, module docstring (Python), imports, leading comments and blanks.
func headerEnd(path string, lines []string) int {
	isPython := strings.EqualFold(filepath.Ext(path), ".py")
	i := 0
	inDocstring := false
	inImportBlock := false
	docDelim := ""

	for ; i < len(lines); i++ {
		stripped := strings.TrimSpace(lines[i])

		if inDocstring {
			if strings.Contains(stripped, docDelim) {
				inDocstring = false
			}
			continue
		}
		if inImportBlock {
			if stripped == ")" {
				inImportBlock = false
			}
			continue
		}
		if strings.HasPrefix(stripped, "import (") {
			inImportBlock = true
			continue
		}

		switch {
		case stripped == "":
		case i == 0 && strings.HasPrefix(stripped, "#!"):
		case isPython && (strings.HasPrefix(stripped, `"""`) || strings.HasPrefix(stripped, "'''")):
			docDelim = stripped[:3]
			// A one-line docstring closes on the same line.
			if !strings.HasSuffix(stripped, docDelim) || len(stripped) < 6 {
				inDocstring = true
			}
		case isHeaderComment(stripped):
		case isImportLine(stripped):
		default:
			return i
		}
	}
	return i
}

func isHeaderComment(stripped string) bool {
	return strings.HasPrefix(stripped, "//") ||
		strings.HasPrefix(stripped, "#") ||
		strings.HasPrefix(stripped, "/*") ||
		strings.HasPrefix(stripped, "*")
}

func isImportLine(stripped string) bool {
	for _, prefix := range []string{"import ", "from ", "#include", "package ", "using ", "require("} {
		if strings.HasPrefix(stripped, prefix) {
			return true
		}
	}
	return stripped == "import"
}
