package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestList(t *testing.T) *List {
	t.Helper()
	l, err := NewList(t.TempDir())
	require.NoError(t, err)
	return l
}

func TestCostUnitsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(15), CostPerTenMillion(1.5))
	assert.Equal(t, int64(30), CostPerTenMillion(3.0))
	assert.Equal(t, 1.5, DisplayCostPerMillion(15))
}

func TestAddRejectsDuplicate(t *testing.T) {
	l := newTestList(t)
	entry := ModelEntry{
		Name:          "gpt-x",
		Provider:      "openai",
		IsThink:       true,
		InputCost:     CostPerTenMillion(1.5),
		OutputCost:    CostPerTenMillion(3.0),
		ContextTokens: 8192,
	}
	require.NoError(t, l.Add(entry))

	got, ok := l.Get("gpt-x")
	require.True(t, ok)
	assert.Equal(t, int64(15), got.InputCost)
	assert.Equal(t, int64(30), got.OutputCost)
	assert.Equal(t, 8192, got.ContextTokens)

	err := l.Add(entry)
	assert.Error(t, err)
}

func TestRemoveIgnoresDefaultOnReload(t *testing.T) {
	dir := t.TempDir()
	l, err := NewList(dir)
	require.NoError(t, err)
	require.True(t, l.Exists("gpt-4.1"))
	require.NoError(t, l.Remove("gpt-4.1"))

	reloaded, err := NewList(dir)
	require.NoError(t, err)
	assert.False(t, reloaded.Exists("gpt-4.1"), "removed default must stay removed")
	assert.True(t, reloaded.Exists("gpt-4.1-mini"))
}

func TestReconcileRefreshesDefaultProperties(t *testing.T) {
	dir := t.TempDir()
	stale := userModelConfig{UserModels: []ModelEntry{
		{Name: "gpt-4.1", Provider: "openai", InputCost: 999, OutputCost: 999, ContextTokens: 1},
		{Name: "my-local", Provider: "openai", InputCost: 1, OutputCost: 1, ContextTokens: 4096},
	}}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, userModelConfigFile), data, 0o644))

	l, err := NewList(dir)
	require.NoError(t, err)

	got, ok := l.Get("gpt-4.1")
	require.True(t, ok)
	assert.Equal(t, int64(20), got.InputCost, "default entry must be refreshed")

	custom, ok := l.Get("my-local")
	require.True(t, ok)
	assert.Equal(t, int64(1), custom.InputCost, "user entry must survive reconcile")
}

func TestResolveModel(t *testing.T) {
	l := newTestList(t)
	provider, think, err := l.ResolveModel("deepseek-reasoner")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", provider)
	assert.True(t, think)

	_, _, err = l.ResolveModel("nope")
	assert.Error(t, err)
}

func TestProfileManagerFirstRunFallback(t *testing.T) {
	dir := t.TempDir()
	l := newTestList(t)
	pm, err := NewProfileManager(dir, l, nil)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", pm.Model(RoleAdvancedCoding))
	assert.NotEmpty(t, pm.ChatModel())

	// The seed must be persisted for the next run.
	_, statErr := os.Stat(filepath.Join(dir, profilesFile))
	assert.NoError(t, statErr)
}

func TestSetProfileValidatesModel(t *testing.T) {
	dir := t.TempDir()
	l := newTestList(t)
	pm, err := NewProfileManager(dir, l, nil)
	require.NoError(t, err)

	assert.Error(t, pm.SetProfile(RoleIntentRouter, "does-not-exist"))
	assert.Error(t, pm.SetProfile("bogus_role", "gpt-4.1"))
	require.NoError(t, pm.SetProfile(RoleIntentRouter, "deepseek-chat"))
	assert.Equal(t, "deepseek-chat", pm.Model(RoleIntentRouter))
}

func TestSetProfileAcceptsModelUsedByAnotherProfile(t *testing.T) {
	dir := t.TempDir()
	pm, err := NewProfileManager(dir, nil, nil)
	require.NoError(t, err)

	// With no model list, only models already assigned elsewhere pass.
	current := pm.Model(RoleAdvancedCoding)
	require.NoError(t, pm.SetProfile(RoleIntentRouter, current))
	assert.Error(t, pm.SetProfile(RoleIntentRouter, "brand-new-model"))
}

func TestProfilesPersistAcrossLoads(t *testing.T) {
	dir := t.TempDir()
	l := newTestList(t)
	pm, err := NewProfileManager(dir, l, nil)
	require.NoError(t, err)
	require.NoError(t, pm.SetProfile(RoleQuickReasoning, "claude-3-5-haiku-latest"))

	pm2, err := NewProfileManager(dir, l, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-latest", pm2.Model(RoleQuickReasoning))
}
