// Package models holds the model registry and the role-to-model profiles.
// Both persist as JSON under the user's ~/.jrdev directory.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"jrdev/internal/logging"
)

const userModelConfigFile = "user_model_config.json"

// ModelEntry describes one usable model. Costs are stored as integer
// units of 1/10,000,000 tokens in the currency base; the display layer
// divides by 10 to show a per-million price.
type ModelEntry struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	IsThink       bool   `json:"is_think"`
	InputCost     int64  `json:"input_cost"`
	OutputCost    int64  `json:"output_cost"`
	ContextTokens int    `json:"context_tokens"`
}

// CostPerTenMillion converts a per-million-token price into stored units.
func CostPerTenMillion(perMillion float64) int64 {
	return int64(math.Round(perMillion * 10))
}

// DisplayCostPerMillion converts stored units back into a per-million price.
func DisplayCostPerMillion(stored int64) float64 {
	return float64(stored) / 10
}

type userModelConfig struct {
	UserModels        []ModelEntry `json:"user_models"`
	IgnoredModelNames []string     `json:"ignored_model_names"`
}

// List is the thread-safe model registry.
type List struct {
	mu      sync.RWMutex
	entries []ModelEntry
	ignored map[string]bool
	dir     string
}

// NewList loads the saved user config from dir and reconciles it with the
// built-in defaults: defaults the user removed stay removed, defaults the
// user still has are refreshed, and new defaults are appended.
func NewList(dir string) (*List, error) {
	l := &List{ignored: make(map[string]bool), dir: dir}

	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.IgnoredModelNames {
		l.ignored[name] = true
	}
	l.entries = cfg.UserModels
	l.reconcile(DefaultModels())

	if err := l.save(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *List) load() (userModelConfig, error) {
	var cfg userModelConfig
	data, err := os.ReadFile(filepath.Join(l.dir, userModelConfigFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read model config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		logging.Boot("model config unreadable, starting from defaults: %v", err)
		return userModelConfig{}, nil
	}
	return cfg, nil
}

func (l *List) save() error {
	cfg := userModelConfig{UserModels: l.entries}
	for name := range l.ignored {
		cfg.IgnoredModelNames = append(cfg.IgnoredModelNames, name)
	}
	sort.Strings(cfg.IgnoredModelNames)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model config: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, userModelConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("write model config: %w", err)
	}
	return nil
}

// reconcile merges the default table into the loaded entries. Holders of
// the lock only; called before the list is shared.
func (l *List) reconcile(defaults []ModelEntry) {
	byName := make(map[string]int, len(l.entries))
	deduped := l.entries[:0]
	for _, e := range l.entries {
		if _, seen := byName[e.Name]; seen {
			continue
		}
		byName[e.Name] = len(deduped)
		deduped = append(deduped, e)
	}
	l.entries = deduped

	for _, d := range defaults {
		if l.ignored[d.Name] {
			continue
		}
		if idx, ok := byName[d.Name]; ok {
			l.entries[idx] = d
			continue
		}
		byName[d.Name] = len(l.entries)
		l.entries = append(l.entries, d)
	}
}

// Models returns a copy of the current entries.
func (l *List) Models() []ModelEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ModelEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get returns the entry for a model name.
func (l *List) Get(name string) (ModelEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Name == name {
			return e, true
		}
	}
	return ModelEntry{}, false
}

// Exists reports whether a model name is registered.
func (l *List) Exists(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// Add appends a new model. Duplicate names are rejected.
func (l *List) Add(entry ModelEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Name == entry.Name {
			return fmt.Errorf("model %s already exists", entry.Name)
		}
	}
	l.entries = append(l.entries, entry)
	delete(l.ignored, entry.Name)
	return l.save()
}

// Remove deletes a model and records its name so a matching default is
// not re-added on the next startup.
func (l *List) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.Name == name {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			l.ignored[name] = true
			return l.save()
		}
	}
	return fmt.Errorf("model %s not found", name)
}

// Edit replaces the entry with the same name.
func (l *List) Edit(entry ModelEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.Name == entry.Name {
			l.entries[i] = entry
			return l.save()
		}
	}
	return fmt.Errorf("model %s not found", entry.Name)
}

// ResolveModel maps a model name to its provider and think flag for the
// streaming transport.
func (l *List) ResolveModel(name string) (string, bool, error) {
	entry, ok := l.Get(name)
	if !ok {
		return "", false, fmt.Errorf("unknown model: %s", name)
	}
	return entry.Provider, entry.IsThink, nil
}
