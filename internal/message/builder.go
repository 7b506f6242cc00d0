// Package message assembles provider-ready message arrays from prompt
// templates, thread history and staged context files.
package message

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"jrdev/internal/llm"
	"jrdev/internal/logging"
	"jrdev/internal/prompts"
)

// ProjectContext supplies the project-level artifacts folded into a
// build. Implemented by the context index.
type ProjectContext interface {
	FileTree() (string, bool)
	Overview() (string, bool)
	Conventions() (string, bool)
}

// Builder accumulates message parts and produces an ordered array.
// A builder is used for exactly one send; it never mutates the thread
// it was seeded from.
type Builder struct {
	system      []string
	history     []llm.Message
	project     ProjectContext
	wantProject bool
	pending     []string
	embedded    map[string]bool
	embeddedNow []string
	context     []string

	userOpen  bool
	userParts []string
	userFinal string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{embedded: make(map[string]bool)}
}

// AddSystemMessage appends raw system text.
func (b *Builder) AddSystemMessage(s string) {
	b.system = append(b.system, s)
}

// LoadSystemPrompt appends a named prompt template as system text.
func (b *Builder) LoadSystemPrompt(key string) error {
	text, err := prompts.Load(key)
	if err != nil {
		return fmt.Errorf("load system prompt: %w", err)
	}
	b.system = append(b.system, text)
	return nil
}

// AddHistoricalMessages appends prior thread messages in order.
func (b *Builder) AddHistoricalMessages(msgs []llm.Message) {
	b.history = append(b.history, msgs...)
}

// AddProjectFiles folds the file tree, overview and conventions into the
// build when they exist.
func (b *Builder) AddProjectFiles(pc ProjectContext) {
	b.project = pc
	b.wantProject = pc != nil
}

// AddContext queues file paths whose contents go into the user section.
func (b *Builder) AddContext(paths []string) {
	b.pending = append(b.pending, paths...)
}

// SetEmbeddedFiles suppresses re-embedding of files a prior send already
// carried.
func (b *Builder) SetEmbeddedFiles(embedded map[string]bool) {
	b.embedded = make(map[string]bool, len(embedded))
	for p, v := range embedded {
		if v {
			b.embedded[p] = true
		}
	}
}

// StartUserSection begins accumulating the user turn.
func (b *Builder) StartUserSection() {
	b.userOpen = true
	b.userParts = nil
}

// AppendToUserSection adds text to the open user turn.
func (b *Builder) AppendToUserSection(s string) {
	b.userParts = append(b.userParts, s)
}

// FinalizeUserSection closes the user turn: the running text, then the
// contents of pending files not already embedded, then a USER CONTEXT
// block of any extra context strings.
func (b *Builder) FinalizeUserSection() {
	if !b.userOpen {
		return
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(b.userParts, ""))

	seen := make(map[string]bool)
	for _, path := range b.pending {
		if b.embedded[path] || seen[path] {
			continue
		}
		seen[path] = true
		content, err := os.ReadFile(path)
		if err != nil {
			logging.ContextWarn("skipping unreadable context file %s: %v", path, err)
			continue
		}
		b.embeddedNow = append(b.embeddedNow, path)
		fmt.Fprintf(&sb, "\n\nFILE: %s\n```\n%s\n```", path, strings.TrimRight(string(content), "\n"))
	}

	if len(b.context) > 0 {
		sb.WriteString("\n\nUSER CONTEXT:\n")
		sb.WriteString(strings.Join(b.context, "\n"))
	}

	b.userFinal = sb.String()
	b.userOpen = false
}

// AddUserContext queues an extra context string for the USER CONTEXT block.
func (b *Builder) AddUserContext(s string) {
	b.context = append(b.context, s)
}

// Build returns the ordered message array: system, project artifacts,
// history, then the finalized user turn.
func (b *Builder) Build() []llm.Message {
	if b.userOpen {
		b.FinalizeUserSection()
	}

	var out []llm.Message
	if len(b.system) > 0 {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: strings.Join(b.system, "\n\n")})
	}
	if b.wantProject {
		if text := b.projectText(); text != "" {
			out = append(out, llm.Message{Role: llm.RoleSystem, Content: text})
		}
	}
	out = append(out, b.history...)
	if b.userFinal != "" {
		out = append(out, llm.Message{Role: llm.RoleUser, Content: b.userFinal})
	}
	return out
}

func (b *Builder) projectText() string {
	var parts []string
	if tree, ok := b.project.FileTree(); ok {
		parts = append(parts, "PROJECT FILE TREE:\n"+tree)
	}
	if overview, ok := b.project.Overview(); ok {
		parts = append(parts, "PROJECT OVERVIEW:\n"+overview)
	}
	if conventions, ok := b.project.Conventions(); ok {
		parts = append(parts, "PROJECT CONVENTIONS:\n"+conventions)
	}
	return strings.Join(parts, "\n\n")
}

// Files returns the paths embedded by this build, sorted. The caller
// merges them into the thread's embedded set iff the send succeeds.
func (b *Builder) Files() []string {
	out := make([]string, len(b.embeddedNow))
	copy(out, b.embeddedNow)
	sort.Strings(out)
	return out
}
