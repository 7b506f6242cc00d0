package gitcmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "origin/main", cfg.BaseBranch)
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveConfig(dir, Config{BaseBranch: "origin/develop"}))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "origin/develop", cfg.BaseBranch)
}

func TestLoadConfigEmptyBaseFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFile), []byte(`{"base_branch":""}`), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "origin/main", cfg.BaseBranch)
}
