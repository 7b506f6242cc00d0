package projectctx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"jrdev/internal/jsonutil"
	"jrdev/internal/llm"
	"jrdev/internal/logging"
	"jrdev/internal/prompts"

	"golang.org/x/sync/errgroup"
)

const (
	treeFile        = "jrdev_filetree.txt"
	overviewFile    = "jrdev_overview.md"
	conventionsFile = "jrdev_conventions.md"
	contextsDir     = "contexts"

	// Concurrent per-file summarizations during /init.
	summarizeWorkers = 4
	maxRecommended   = 20
)

// Generator is the slice of the streaming transport the context manager
// needs. Implemented by llm.Transport.
type Generator interface {
	GenerateResponse(ctx context.Context, model string, messages []llm.Message, workerID string, opts llm.StreamOptions) (string, error)
}

// Profiles resolves a profile role to a model name.
type Profiles interface {
	Model(role string) string
}

// SubTasker spawns tracked child workers for the /init fan-out. May be
// nil when no monitor is attached.
type SubTasker interface {
	NewSubTask(parentID, description string) string
	MarkDone(workerID string, err error)
}

// Manager owns the on-disk context artifacts for one project.
type Manager struct {
	root     string
	jrdevDir string
	index    *Index
	gen      Generator
	profiles Profiles
	monitor  SubTasker
	enabled  atomic.Bool
}

// NewManager loads the index from <root>/.jrdev/contexts.
func NewManager(root string, gen Generator, profiles Profiles, monitor SubTasker) (*Manager, error) {
	jrdevDir := filepath.Join(root, ".jrdev")
	idx, err := LoadIndex(root, filepath.Join(jrdevDir, contextsDir))
	if err != nil {
		return nil, err
	}
	m := &Manager{
		root:     root,
		jrdevDir: jrdevDir,
		index:    idx,
		gen:      gen,
		profiles: profiles,
		monitor:  monitor,
	}
	m.enabled.Store(true)
	return m, nil
}

// Enabled reports whether project context is folded into chat builds.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

// SetEnabled toggles project context use.
func (m *Manager) SetEnabled(on bool) { m.enabled.Store(on) }

// Index exposes the hash index for staleness queries.
func (m *Manager) Index() *Index { return m.index }

func (m *Manager) artifact(name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(m.jrdevDir, name))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// FileTree returns the stored compact tree.
func (m *Manager) FileTree() (string, bool) {
	if !m.enabled.Load() {
		return "", false
	}
	return m.artifact(treeFile)
}

// Overview returns the stored project overview.
func (m *Manager) Overview() (string, bool) {
	if !m.enabled.Load() {
		return "", false
	}
	return m.artifact(overviewFile)
}

// Conventions returns the stored conventions document.
func (m *Manager) Conventions() (string, bool) {
	if !m.enabled.Load() {
		return "", false
	}
	return m.artifact(conventionsFile)
}

// Summary returns the stored summary markdown for a project-relative path.
func (m *Manager) Summary(relPath string) (string, error) {
	entry, ok := m.index.Get(relPath)
	if !ok {
		return "", fmt.Errorf("no summary for %s", relPath)
	}
	data, err := os.ReadFile(entry.SummaryPath)
	if err != nil {
		return "", fmt.Errorf("read summary: %w", err)
	}
	return string(data), nil
}

// RefreshTree regenerates and stores the compact tree.
func (m *Manager) RefreshTree() (string, error) {
	tree, err := GenerateTree(m.root)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.jrdevDir, 0o755); err != nil {
		return "", fmt.Errorf("create .jrdev dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.jrdevDir, treeFile), []byte(tree), 0o644); err != nil {
		return "", fmt.Errorf("write file tree: %w", err)
	}
	return tree, nil
}

// GenerateContext summarizes one file with the quick reasoning profile
// and records it in the index.
func (m *Manager) GenerateContext(ctx context.Context, relPath, workerID string) error {
	absPath := filepath.Join(m.root, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}

	system, err := prompts.Load("init/file_summary")
	if err != nil {
		return err
	}
	summary, err := m.gen.GenerateResponse(ctx, m.profiles.Model("quick_reasoning"), []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: fmt.Sprintf("FILE: %s\n\n%s", relPath, string(content))},
	}, workerID, llm.StreamOptions{})
	if err != nil {
		return fmt.Errorf("summarize %s: %w", relPath, err)
	}

	summaryPath := filepath.Join(m.jrdevDir, contextsDir, summaryName(relPath))
	if err := os.MkdirAll(filepath.Dir(summaryPath), 0o755); err != nil {
		return fmt.Errorf("create contexts dir: %w", err)
	}
	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	hash, err := HashFile(absPath)
	if err != nil {
		return fmt.Errorf("hash %s: %w", relPath, err)
	}
	logging.Context("indexed %s", relPath)
	return m.index.Record(relPath, summaryPath, hash)
}

// summaryName flattens a relative path into a single markdown filename.
func summaryName(relPath string) string {
	flat := strings.NewReplacer("/", "_", "\\", "_").Replace(relPath)
	return flat + ".md"
}

// Init runs the full indexing workflow: tree, recommended-file selection,
// concurrent per-file summaries plus conventions, then the overview.
func (m *Manager) Init(ctx context.Context, workerID string) error {
	tree, err := m.RefreshTree()
	if err != nil {
		return err
	}

	recommended, err := m.recommendFiles(ctx, tree, workerID)
	if err != nil {
		return err
	}
	logging.Context("init: %d files recommended for summarization", len(recommended))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summarizeWorkers)
	for _, relPath := range recommended {
		g.Go(func() error {
			id := workerID
			if m.monitor != nil {
				id = m.monitor.NewSubTask(workerID, "summarize "+relPath)
			}
			err := m.GenerateContext(gctx, relPath, id)
			if m.monitor != nil {
				m.monitor.MarkDone(id, err)
			}
			// One unreadable file must not sink the whole init.
			if err != nil {
				logging.ContextWarn("init: %v", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return m.generateConventions(gctx, tree, workerID)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return m.generateOverview(ctx, tree, workerID)
}

func (m *Manager) recommendFiles(ctx context.Context, tree, workerID string) ([]string, error) {
	system, err := prompts.Load("init/recommend_files")
	if err != nil {
		return nil, err
	}
	resp, err := m.gen.GenerateResponse(ctx, m.profiles.Model("advanced_reasoning"), []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: tree},
	}, workerID, llm.StreamOptions{JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("recommend files: %w", err)
	}

	var decoded struct {
		Files []string `json:"files"`
	}
	if err := jsonutil.UnmarshalFenced(resp, &decoded); err != nil {
		return nil, fmt.Errorf("recommend files: %w", err)
	}

	// Keep only paths that exist, capped.
	known := make(map[string]bool)
	for _, p := range ParseTree(tree) {
		known[p] = true
	}
	var out []string
	for _, p := range decoded.Files {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if known[p] {
			out = append(out, p)
		}
		if len(out) == maxRecommended {
			break
		}
	}
	return out, nil
}

func (m *Manager) generateConventions(ctx context.Context, tree, workerID string) error {
	system, err := prompts.Load("init/conventions")
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(tree)
	for _, relPath := range ParseTree(tree) {
		content, err := os.ReadFile(filepath.Join(m.root, relPath))
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\n\nFILE: %s\n%s", relPath, string(content))
	}

	conventions, err := m.gen.GenerateResponse(ctx, m.profiles.Model("advanced_reasoning"), []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: sb.String()},
	}, workerID, llm.StreamOptions{})
	if err != nil {
		return fmt.Errorf("generate conventions: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.jrdevDir, conventionsFile), []byte(conventions), 0o644); err != nil {
		return fmt.Errorf("write conventions: %w", err)
	}
	return nil
}

func (m *Manager) generateOverview(ctx context.Context, tree, workerID string) error {
	system, err := prompts.Load("init/overview")
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("FILE TREE:\n")
	sb.WriteString(tree)
	for _, relPath := range m.index.FilePaths() {
		summary, err := m.Summary(relPath)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\nSUMMARY %s:\n%s\n", relPath, summary)
	}
	if conventions, ok := m.artifact(conventionsFile); ok {
		sb.WriteString("\nCONVENTIONS:\n")
		sb.WriteString(conventions)
	}

	overview, err := m.gen.GenerateResponse(ctx, m.profiles.Model("advanced_reasoning"), []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: sb.String()},
	}, workerID, llm.StreamOptions{})
	if err != nil {
		return fmt.Errorf("generate overview: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.jrdevDir, overviewFile), []byte(overview), 0o644); err != nil {
		return fmt.Errorf("write overview: %w", err)
	}
	logging.Context("init complete: overview written")
	return nil
}
