// Package gitcmd implements the /git surface: a small JSON config for the
// review base branch and PR summary/review over the branch diff.
package gitcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"jrdev/internal/llm"
	"jrdev/internal/prompts"
)

const (
	configFile        = "git_config.json"
	defaultBaseBranch = "origin/main"

	refVerifyTimeout = 5 * time.Second
	diffTimeout      = 30 * time.Second
)

// Config holds the persisted git settings.
type Config struct {
	BaseBranch string `json:"base_branch"`
}

// LoadConfig reads <jrdevDir>/git_config.json, defaulting the base branch.
func LoadConfig(jrdevDir string) (Config, error) {
	cfg := Config{BaseBranch: defaultBaseBranch}
	data, err := os.ReadFile(filepath.Join(jrdevDir, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read git config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse git config: %w", err)
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = defaultBaseBranch
	}
	return cfg, nil
}

// SaveConfig writes the config back.
func SaveConfig(jrdevDir string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal git config: %w", err)
	}
	if err := os.MkdirAll(jrdevDir, 0o755); err != nil {
		return fmt.Errorf("create .jrdev dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(jrdevDir, configFile), data, 0o644); err != nil {
		return fmt.Errorf("write git config: %w", err)
	}
	return nil
}

// Generator is the transport slice used for diff review calls.
type Generator interface {
	GenerateResponse(ctx context.Context, model string, messages []llm.Message, workerID string, opts llm.StreamOptions) (string, error)
}

// Profiles resolves the review model.
type Profiles interface {
	Model(role string) string
}

// Reviewer produces PR summaries and reviews from the working tree's
// diff against the configured base branch.
type Reviewer struct {
	root     string
	base     string
	gen      Generator
	profiles Profiles
}

// NewReviewer builds a reviewer for one repository root.
func NewReviewer(root, baseBranch string, gen Generator, profiles Profiles) *Reviewer {
	if baseBranch == "" {
		baseBranch = defaultBaseBranch
	}
	return &Reviewer{root: root, base: baseBranch, gen: gen, profiles: profiles}
}

// branchDiff verifies the base ref and returns `git diff <base>...HEAD`.
func (r *Reviewer) branchDiff(ctx context.Context) (string, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, refVerifyTimeout)
	defer cancel()
	verify := exec.CommandContext(verifyCtx, "git", "rev-parse", "--verify", r.base)
	verify.Dir = r.root
	if out, err := verify.CombinedOutput(); err != nil {
		return "", fmt.Errorf("base branch %s not found: %s", r.base, strings.TrimSpace(string(out)))
	}

	diffCtx, cancel := context.WithTimeout(ctx, diffTimeout)
	defer cancel()
	diff := exec.CommandContext(diffCtx, "git", "diff", r.base+"...HEAD")
	diff.Dir = r.root
	out, err := diff.Output()
	if err != nil {
		return "", fmt.Errorf("git diff against %s: %w", r.base, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("no changes against %s", r.base)
	}
	return string(out), nil
}

// Summary generates a PR summary for the branch diff.
func (r *Reviewer) Summary(ctx context.Context, workerID string) (string, error) {
	return r.reviewWith(ctx, "git/pr_summary", workerID)
}

// Review generates a code review of the branch diff.
func (r *Reviewer) Review(ctx context.Context, workerID string) (string, error) {
	return r.reviewWith(ctx, "git/pr_review", workerID)
}

func (r *Reviewer) reviewWith(ctx context.Context, promptKey, workerID string) (string, error) {
	diff, err := r.branchDiff(ctx)
	if err != nil {
		return "", err
	}
	system, err := prompts.Load(promptKey)
	if err != nil {
		return "", err
	}
	resp, err := r.gen.GenerateResponse(ctx, r.profiles.Model("advanced_reasoning"), []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: diff},
	}, workerID, llm.StreamOptions{})
	if err != nil {
		return "", fmt.Errorf("diff review call: %w", err)
	}
	return resp, nil
}
