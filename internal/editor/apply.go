package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jrdev/internal/diff"
	"jrdev/internal/logging"
)

// ConfirmChoice is the user's answer to a diff confirmation.
type ConfirmChoice string

const (
	ChoiceYes           ConfirmChoice = "yes"
	ChoiceNo            ConfirmChoice = "no"
	ChoiceRequestChange ConfirmChoice = "request_change"
	ChoiceEdit          ConfirmChoice = "edit"
	ChoiceAcceptAll     ConfirmChoice = "accept_all"
)

// Confirmation carries the user's decision about a proposed diff.
type Confirmation struct {
	Choice      ConfirmChoice
	Message     string   // feedback, when Choice is request_change
	EditedLines []string // replacement content, when Choice is edit
}

// Confirmer presents a proposed diff to the user. Implemented by the
// terminal UI; tests supply scripted confirmers.
type Confirmer interface {
	ConfirmChange(prompt string, diffLines []string) (Confirmation, error)
}

// Status summarizes the outcome of an Apply call.
type Status string

const (
	StatusApplied         Status = "applied"
	StatusRejected        Status = "rejected"
	StatusChangeRequested Status = "change_requested"
	StatusNoChanges       Status = "no_changes"
)

// Result reports what Apply did.
type Result struct {
	Status          Status
	FilesChanged    []string
	RejectionReason string
	Warnings        []string
}

// Editor applies batches of FileChanges under user confirmation.
// The accept-all flag is per-instance session state, set when the user
// answers accept_all to any diff.
type Editor struct {
	root      string
	confirmer Confirmer
	acceptAll bool
}

// New creates an Editor rooted at the project directory.
func New(root string, confirmer Confirmer) *Editor {
	return &Editor{root: root, confirmer: confirmer}
}

// SetAcceptAll pre-arms auto-acceptance (one-shot --accept-all flag).
func (e *Editor) SetAcceptAll(v bool) { e.acceptAll = v }

// AcceptAll reports whether auto-acceptance is active.
func (e *Editor) AcceptAll() bool { return e.acceptAll }

// Apply validates and applies a batch of changes. Existing files are
// processed in fixed phases (ADD/DELETE by descending line, then
// location-addressed inserts, then REPLACE) so earlier phases cannot
// invalidate later line numbers. Every write is gated on the confirmer
// unless accept-all is active.
func (e *Editor) Apply(changes []FileChange) (*Result, error) {
	res := &Result{Status: StatusNoChanges}

	var news []FileChange
	groups := make(map[string][]FileChange)
	var order []string
	for _, ch := range changes {
		if ch.Operation == OpNew {
			news = append(news, ch)
			continue
		}
		if _, seen := groups[ch.Filename]; !seen {
			order = append(order, ch.Filename)
		}
		groups[ch.Filename] = append(groups[ch.Filename], ch)
	}

	for _, filename := range order {
		done, err := e.applyFileGroup(filename, groups[filename], res)
		if err != nil {
			return nil, err
		}
		if done {
			return res, nil
		}
	}

	for _, ch := range news {
		done, err := e.applyNew(ch, res)
		if err != nil {
			return nil, err
		}
		if done {
			return res, nil
		}
	}

	if len(res.FilesChanged) > 0 {
		res.Status = StatusApplied
	}
	return res, nil
}

// applyFileGroup handles all changes targeting one existing file. The bool
// result is true when the whole batch must stop (rejection or feedback).
func (e *Editor) applyFileGroup(filename string, group []FileChange, res *Result) (bool, error) {
	path, err := resolvePath(e.root, filename)
	if err != nil {
		warning := fmt.Sprintf("skipping %s: %v", filename, err)
		logging.EditorError("%s", warning)
		res.Warnings = append(res.Warnings, warning)
		return false, nil
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(original)
	lines, trailingNL := splitLines(content)

	applied := 0

	// Phase 1: ADD and DELETE, descending start line.
	lineChanges := filterOps(group, OpAdd, OpDelete)
	sortByStartLineDesc(lineChanges)
	for _, ch := range lineChanges {
		if ch.Operation == OpAdd {
			lines = applyAdd(lines, ch)
		} else {
			lines = applyDelete(lines, ch)
		}
		applied++
	}

	// Phase 2: location-addressed inserts.
	for _, ch := range filterOps(group, OpInsert) {
		newLines, err := applyInsert(path, lines, ch)
		if err != nil {
			warning := fmt.Sprintf("%s: %v", filename, err)
			logging.EditorWarn("%s", warning)
			res.Warnings = append(res.Warnings, warning)
			continue
		}
		lines = newLines
		applied++
	}

	// Phase 3: REPLACE on the assembled content.
	newContent := joinLines(lines, trailingNL)
	for _, ch := range filterOps(group, OpReplace) {
		if !strings.Contains(newContent, ch.Anchor) {
			warning := fmt.Sprintf("%s: replace anchor not found", filename)
			logging.EditorWarn("%s", warning)
			res.Warnings = append(res.Warnings, warning)
			continue
		}
		newContent = strings.Replace(newContent, ch.Anchor, ch.NewContent, 1)
		applied++
	}

	if applied == 0 || newContent == content {
		return false, nil
	}

	rel := relPath(e.root, path)
	return e.confirmAndWrite(path, rel, content, newContent, res)
}

func (e *Editor) applyNew(ch FileChange, res *Result) (bool, error) {
	path := ch.Filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.root, ch.Filename)
	}
	if fileExists(path) {
		warning := fmt.Sprintf("NEW %s: file already exists", ch.Filename)
		logging.EditorWarn("%s", warning)
		res.Warnings = append(res.Warnings, warning)
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create directories for %s: %w", ch.Filename, err)
	}

	content := ch.NewContent
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return e.confirmAndWrite(path, relPath(e.root, path), "", content, res)
}

// confirmAndWrite diffs, confirms (with edit/re-diff loop), and writes.
// The bool result is true when the batch must stop.
func (e *Editor) confirmAndWrite(path, rel, oldContent, newContent string, res *Result) (bool, error) {
	for {
		fd := diff.Compute(rel, oldContent, newContent)
		if !fd.HasChanges() {
			return false, nil
		}

		if e.acceptAll {
			if err := writeFile(path, newContent); err != nil {
				return false, err
			}
			res.FilesChanged = append(res.FilesChanged, rel)
			logging.Editor("auto-accepted changes to %s", rel)
			return false, nil
		}

		prompt := fmt.Sprintf("Apply changes to %s?", rel)
		conf, err := e.confirmer.ConfirmChange(prompt, fd.RenderUnified())
		if err != nil {
			return false, fmt.Errorf("confirmation failed: %w", err)
		}

		switch conf.Choice {
		case ChoiceYes, ChoiceAcceptAll:
			if conf.Choice == ChoiceAcceptAll {
				e.acceptAll = true
			}
			if err := writeFile(path, newContent); err != nil {
				return false, err
			}
			res.FilesChanged = append(res.FilesChanged, rel)
			logging.Editor("applied changes to %s", rel)
			return false, nil

		case ChoiceEdit:
			newContent = strings.Join(conf.EditedLines, "\n")
			if !strings.HasSuffix(newContent, "\n") {
				newContent += "\n"
			}
			// Loop: re-diff and re-confirm the user-edited content.

		case ChoiceRequestChange:
			res.Status = StatusChangeRequested
			res.RejectionReason = conf.Message
			logging.Editor("change requested for %s: %s", rel, conf.Message)
			return true, nil

		case ChoiceNo:
			res.Status = StatusRejected
			logging.Editor("changes to %s rejected", rel)
			return true, nil

		default:
			return false, fmt.Errorf("unknown confirmation choice %q", conf.Choice)
		}
	}
}

func applyAdd(lines []string, ch FileChange) []string {
	content := contentLines(ch.NewContent)
	idx := ch.StartLine - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(lines) {
		idx = len(lines)
	}
	return splice(lines, idx, content)
}

func applyDelete(lines []string, ch FileChange) []string {
	start := ch.StartLine - 1
	end := ch.EndLine // exclusive
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return lines
	}
	out := make([]string, 0, len(lines)-(end-start))
	out = append(out, lines[:start]...)
	out = append(out, lines[end:]...)
	return out
}

func applyInsert(path string, lines []string, ch FileChange) ([]string, error) {
	point, err := resolveInsert(path, lines, ch.Insert)
	if err != nil {
		return nil, err
	}

	content := contentLines(ch.NewContent)

	// Pure-blank content collapses the existing blank run after the anchor
	// to exactly the requested count.
	if strings.TrimSpace(ch.NewContent) == "" {
		at := point.At
		end := at
		for end < len(lines) && strings.TrimSpace(lines[end]) == "" {
			end++
		}
		blanks := make([]string, len(content))
		out := make([]string, 0, len(lines))
		out = append(out, lines[:at]...)
		out = append(out, blanks...)
		out = append(out, lines[end:]...)
		return out, nil
	}

	if ch.IndentHint != "" && point.AnchorIdx >= 0 && point.AnchorIdx < len(lines) {
		content = reindent(content, leadingWhitespace(lines[point.AnchorIdx]), ch.IndentHint)
	}

	if point.BlankBefore {
		prevBlank := point.At == 0 || strings.TrimSpace(lines[point.At-1]) == ""
		if !prevBlank && strings.TrimSpace(content[0]) != "" {
			content = append([]string{""}, content...)
		}
	}

	return splice(lines, point.At, content), nil
}

// reindent sets the first line's indentation relative to the anchor line and
// shifts subsequent lines by the same amount.
func reindent(content []string, anchorIndent string, hint IndentHint) []string {
	target := anchorIndent
	switch hint {
	case IndentIncrease:
		target += "    "
	case IndentDecrease:
		if strings.HasSuffix(target, "\t") {
			target = target[:len(target)-1]
		} else if len(target) >= 4 {
			target = target[:len(target)-4]
		} else {
			target = ""
		}
	}

	firstIndent := leadingWhitespace(content[0])
	if firstIndent == target {
		return content
	}

	out := make([]string, len(content))
	for i, line := range content {
		if strings.TrimSpace(line) == "" {
			out[i] = line
			continue
		}
		if strings.HasPrefix(line, firstIndent) {
			out[i] = target + line[len(firstIndent):]
		} else {
			out[i] = line
		}
	}
	return out
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func contentLines(content string) []string {
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func splice(lines []string, at int, insert []string) []string {
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)
	return out
}

func filterOps(group []FileChange, ops ...Operation) []FileChange {
	var out []FileChange
	for _, ch := range group {
		for _, op := range ops {
			if ch.Operation == op {
				out = append(out, ch)
				break
			}
		}
	}
	return out
}

func sortByStartLineDesc(changes []FileChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].StartLine > changes[j].StartLine
	})
}

func splitLines(content string) (lines []string, trailingNL bool) {
	if content == "" {
		return nil, false
	}
	trailingNL = strings.HasSuffix(content, "\n")
	if trailingNL {
		content = content[:len(content)-1]
	}
	return strings.Split(content, "\n"), trailingNL
}

func joinLines(lines []string, trailingNL bool) string {
	out := strings.Join(lines, "\n")
	if trailingNL {
		out += "\n"
	}
	return out
}

func writeFile(path, content string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(path, []byte(content), mode)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
