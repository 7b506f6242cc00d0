// Package editor applies structured file changes produced by the code
// agent. Changes arrive as a JSON envelope, are validated into a tagged
// union, applied in fixed phases, diffed, and confirmed by the user before
// anything touches disk.
package editor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation tags a FileChange variant.
type Operation string

const (
	OpNew     Operation = "NEW"
	OpDelete  Operation = "DELETE"
	OpAdd     Operation = "ADD"
	OpReplace Operation = "REPLACE"
	// OpInsert is the location-addressed insert; it has no explicit
	// operation key on the wire, only an insert_location.
	OpInsert Operation = "INSERT"
)

// IndentHint adjusts inserted content relative to the anchor line.
type IndentHint string

const (
	IndentMaintain IndentHint = "maintain_indent"
	IndentIncrease IndentHint = "increase_indent"
	IndentDecrease IndentHint = "decrease_indent"
)

// Position marker kinds for within_function inserts.
const (
	PosAtStart      = "at_start"
	PosBeforeReturn = "before_return"
	PosAfterLine    = "after_line"
)

// PositionMarker pins a within_function insert to a spot in the body.
type PositionMarker struct {
	Kind          string
	AfterLineNum  int    // set when Kind == PosAfterLine and the value was numeric
	AfterLineText string // set when Kind == PosAfterLine and the value was a string
}

// InsertLocation addresses a location-based insert. Exactly one of the
// fields is set.
type InsertLocation struct {
	AfterFunction  string
	WithinFunction string
	Position       *PositionMarker // only with WithinFunction
	AfterMarker    string
	Global         string // "start" or "end"
}

// FileChange is one structured edit. Which fields are meaningful depends on
// Operation; ParseChanges guarantees the shape.
type FileChange struct {
	Operation  Operation
	Filename   string
	NewContent string
	StartLine  int // 1-indexed
	EndLine    int // 1-indexed inclusive (DELETE)
	SubType    string
	Anchor     string
	Insert     *InsertLocation
	IndentHint IndentHint
}

type rawChange struct {
	Operation       string          `json:"operation"`
	Filename        string          `json:"filename"`
	NewContent      string          `json:"new_content"`
	StartLine       int             `json:"start_line"`
	EndLine         int             `json:"end_line"`
	SubType         string          `json:"sub_type"`
	Anchor          string          `json:"anchor"`
	InsertLocation  json.RawMessage `json:"insert_location"`
	IndentHint      string          `json:"indentation_hint"`
	InsertAfterLine json.RawMessage `json:"insert_after_line"`
}

type envelope struct {
	Changes []json.RawMessage `json:"changes"`
}

// ParseChanges decodes a {"changes": [...]} envelope into validated
// FileChange records. Unknown or retired operations are rejected with a
// specific error rather than coerced.
func ParseChanges(data []byte) ([]FileChange, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid change envelope: %w", err)
	}
	if len(env.Changes) == 0 {
		return nil, fmt.Errorf("change envelope contains no changes")
	}

	changes := make([]FileChange, 0, len(env.Changes))
	for i, raw := range env.Changes {
		ch, err := parseOne(raw)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

func parseOne(data json.RawMessage) (FileChange, error) {
	var rc rawChange
	if err := json.Unmarshal(data, &rc); err != nil {
		return FileChange{}, fmt.Errorf("invalid change: %w", err)
	}
	if rc.Filename == "" {
		return FileChange{}, fmt.Errorf("missing filename")
	}
	if rc.InsertAfterLine != nil {
		return FileChange{}, fmt.Errorf("insert_after_line is retired; use insert_location.after_marker")
	}

	hint := IndentHint(rc.IndentHint)
	switch hint {
	case "", IndentMaintain, IndentIncrease, IndentDecrease:
	default:
		return FileChange{}, fmt.Errorf("unknown indentation_hint %q", rc.IndentHint)
	}

	op := Operation(strings.ToUpper(rc.Operation))
	if rc.Operation == "" && rc.InsertLocation != nil {
		op = OpInsert
	}

	switch op {
	case OpNew:
		if rc.NewContent == "" {
			return FileChange{}, fmt.Errorf("NEW requires new_content")
		}
		return FileChange{Operation: OpNew, Filename: rc.Filename, NewContent: rc.NewContent}, nil

	case OpDelete:
		if rc.StartLine < 1 || rc.EndLine < rc.StartLine {
			return FileChange{}, fmt.Errorf("DELETE requires 1-indexed start_line <= end_line")
		}
		return FileChange{Operation: OpDelete, Filename: rc.Filename, StartLine: rc.StartLine, EndLine: rc.EndLine}, nil

	case OpAdd:
		if rc.StartLine < 1 {
			return FileChange{}, fmt.Errorf("ADD requires a 1-indexed start_line")
		}
		if rc.NewContent == "" {
			return FileChange{}, fmt.Errorf("ADD requires new_content")
		}
		return FileChange{
			Operation: OpAdd, Filename: rc.Filename,
			StartLine: rc.StartLine, NewContent: rc.NewContent, SubType: rc.SubType,
		}, nil

	case OpReplace:
		if rc.Anchor == "" {
			return FileChange{}, fmt.Errorf("REPLACE requires an anchor snippet")
		}
		return FileChange{
			Operation: OpReplace, Filename: rc.Filename,
			Anchor: rc.Anchor, NewContent: rc.NewContent,
		}, nil

	case OpInsert:
		if rc.InsertLocation == nil {
			return FileChange{}, fmt.Errorf("insert change requires insert_location")
		}
		loc, err := parseInsertLocation(rc.InsertLocation)
		if err != nil {
			return FileChange{}, err
		}
		if rc.NewContent == "" {
			return FileChange{}, fmt.Errorf("insert requires new_content")
		}
		return FileChange{
			Operation: OpInsert, Filename: rc.Filename,
			NewContent: rc.NewContent, Insert: loc, IndentHint: hint,
		}, nil

	case "MODIFY":
		return FileChange{}, fmt.Errorf("operation MODIFY is not supported; use REPLACE with an exact anchor")
	case "RENAME":
		return FileChange{}, fmt.Errorf("operation RENAME is not supported")
	default:
		return FileChange{}, fmt.Errorf("unknown operation %q", rc.Operation)
	}
}

type rawLocation struct {
	AfterFunction  string          `json:"after_function"`
	WithinFunction string          `json:"within_function"`
	PositionMarker json.RawMessage `json:"position_marker"`
	AfterMarker    string          `json:"after_marker"`
	Global         json.RawMessage `json:"global"`
}

func parseInsertLocation(data json.RawMessage) (*InsertLocation, error) {
	var rl rawLocation
	if err := json.Unmarshal(data, &rl); err != nil {
		return nil, fmt.Errorf("invalid insert_location: %w", err)
	}

	set := 0
	loc := &InsertLocation{}

	if rl.AfterFunction != "" {
		set++
		loc.AfterFunction = rl.AfterFunction
	}
	if rl.WithinFunction != "" {
		set++
		loc.WithinFunction = rl.WithinFunction
		pos, err := parsePositionMarker(rl.PositionMarker)
		if err != nil {
			return nil, err
		}
		loc.Position = pos
	}
	if rl.AfterMarker != "" {
		set++
		loc.AfterMarker = rl.AfterMarker
	}
	if rl.Global != nil {
		set++
		g, err := parseGlobal(rl.Global)
		if err != nil {
			return nil, err
		}
		loc.Global = g
	}

	if set != 1 {
		return nil, fmt.Errorf("insert_location must set exactly one of after_function, within_function, after_marker, global")
	}
	return loc, nil
}

func parsePositionMarker(data json.RawMessage) (*PositionMarker, error) {
	if data == nil {
		// Default to the start of the function body.
		return &PositionMarker{Kind: PosAtStart}, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case PosAtStart, PosBeforeReturn:
			return &PositionMarker{Kind: s}, nil
		default:
			return nil, fmt.Errorf("unknown position_marker %q", s)
		}
	}

	var obj struct {
		AfterLine json.RawMessage `json:"after_line"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.AfterLine == nil {
		return nil, fmt.Errorf("invalid position_marker %s", string(data))
	}

	var n int
	if err := json.Unmarshal(obj.AfterLine, &n); err == nil {
		if n < 1 {
			return nil, fmt.Errorf("after_line must be >= 1")
		}
		return &PositionMarker{Kind: PosAfterLine, AfterLineNum: n}, nil
	}
	var text string
	if err := json.Unmarshal(obj.AfterLine, &text); err == nil && text != "" {
		return &PositionMarker{Kind: PosAfterLine, AfterLineText: text}, nil
	}
	return nil, fmt.Errorf("after_line must be a line number or a search string")
}

func parseGlobal(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "start" || s == "end" {
			return s, nil
		}
		return "", fmt.Errorf(`global must be "start", "end", or true`)
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil && b {
		// Bare true means append at the end.
		return "end", nil
	}
	return "", fmt.Errorf(`global must be "start", "end", or true`)
}
