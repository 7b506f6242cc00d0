package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"jrdev/internal/llm"
	"jrdev/internal/logging"
)

const profilesFile = "model_profiles.json"

// Profile roles, from cheap routing to heavyweight code generation.
const (
	RoleIntentRouter       = "intent_router"
	RoleQuickReasoning     = "quick_reasoning"
	RoleAdvancedReasoning  = "advanced_reasoning"
	RoleIntermediateCoding = "intermediate_coding"
	RoleAdvancedCoding     = "advanced_coding"
)

// Roles lists every profile role in display order.
var Roles = []string{
	RoleIntentRouter,
	RoleQuickReasoning,
	RoleAdvancedReasoning,
	RoleIntermediateCoding,
	RoleAdvancedCoding,
}

type profileConfig struct {
	Profiles       map[string]string `json:"profiles"`
	DefaultProfile string            `json:"default_profile"`
	ChatModel      string            `json:"chat_model"`
}

// ProfileManager maps roles to model names and remembers the chat model.
type ProfileManager struct {
	mu   sync.RWMutex
	cfg  profileConfig
	list *List
	dir  string
}

// NewProfileManager loads saved profiles, or seeds them from the first
// active provider in preference order on a fresh install.
func NewProfileManager(dir string, list *List, registry *llm.Registry) (*ProfileManager, error) {
	pm := &ProfileManager{list: list, dir: dir}

	path := filepath.Join(dir, profilesFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &pm.cfg); jsonErr != nil {
			logging.Boot("profiles file unreadable, reseeding: %v", jsonErr)
			pm.cfg = seedProfiles(registry)
		}
	case os.IsNotExist(err):
		pm.cfg = seedProfiles(registry)
	default:
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	if pm.cfg.Profiles == nil {
		pm.cfg.Profiles = fallbackProfiles()
	}
	if pm.cfg.DefaultProfile == "" {
		pm.cfg.DefaultProfile = RoleQuickReasoning
	}
	if pm.cfg.ChatModel == "" {
		pm.cfg.ChatModel = pm.cfg.Profiles[pm.cfg.DefaultProfile]
	}

	if err := pm.save(); err != nil {
		return nil, err
	}
	return pm, nil
}

func seedProfiles(registry *llm.Registry) profileConfig {
	active := make(map[string]llm.Provider)
	if registry != nil {
		for _, p := range registry.Active() {
			active[p.Name] = p
		}
	}
	for _, name := range llm.ProviderPreference {
		if p, ok := active[name]; ok && len(p.DefaultProfiles) > 0 {
			logging.Boot("seeding profiles from provider %s", name)
			profiles := make(map[string]string, len(p.DefaultProfiles))
			for role, model := range p.DefaultProfiles {
				profiles[role] = model
			}
			return profileConfig{Profiles: profiles, DefaultProfile: RoleQuickReasoning}
		}
	}
	return profileConfig{Profiles: fallbackProfiles(), DefaultProfile: RoleQuickReasoning}
}

func fallbackProfiles() map[string]string {
	return map[string]string{
		RoleIntentRouter:       "gpt-4.1-mini",
		RoleQuickReasoning:     "gpt-4.1-mini",
		RoleAdvancedReasoning:  "o4-mini",
		RoleIntermediateCoding: "gpt-4.1",
		RoleAdvancedCoding:     "gpt-4.1",
	}
}

func (pm *ProfileManager) save() error {
	data, err := json.MarshalIndent(pm.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := os.MkdirAll(pm.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(pm.dir, profilesFile), data, 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

// Model returns the model configured for a role, falling back to the
// default profile's model for unknown roles.
func (pm *ProfileManager) Model(role string) string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if m, ok := pm.cfg.Profiles[role]; ok && m != "" {
		return m
	}
	return pm.cfg.Profiles[pm.cfg.DefaultProfile]
}

// ChatModel returns the model used for plain chat.
func (pm *ProfileManager) ChatModel() string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.cfg.ChatModel
}

// SetChatModel validates and persists the chat model.
func (pm *ProfileManager) SetChatModel(model string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.allowed(model) {
		return fmt.Errorf("unknown model: %s", model)
	}
	pm.cfg.ChatModel = model
	return pm.save()
}

// SetProfile validates and persists a role's model. A model is accepted
// when it is registered or already assigned to another profile.
func (pm *ProfileManager) SetProfile(role, model string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !validRole(role) {
		return fmt.Errorf("unknown profile role: %s", role)
	}
	if !pm.allowed(model) {
		return fmt.Errorf("unknown model: %s", model)
	}
	pm.cfg.Profiles[role] = model
	return pm.save()
}

func (pm *ProfileManager) allowed(model string) bool {
	if pm.list != nil && pm.list.Exists(model) {
		return true
	}
	for _, m := range pm.cfg.Profiles {
		if m == model {
			return true
		}
	}
	return false
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Profiles returns a copy of the role assignments, sorted for display.
func (pm *ProfileManager) Profiles() []struct{ Role, Model string } {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]struct{ Role, Model string }, 0, len(pm.cfg.Profiles))
	for role, model := range pm.cfg.Profiles {
		out = append(out, struct{ Role, Model string }{role, model})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
