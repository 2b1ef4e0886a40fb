package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyWarningFlag(t *testing.T) {
	cfg := NewConfig()
	require.True(t, cfg.IsWarningEnabled(WarnTrigraphs))

	cfg.ApplyWarningFlag("no-trigraphs")
	assert.False(t, cfg.IsWarningEnabled(WarnTrigraphs))

	cfg.ApplyWarningFlag("trigraphs")
	assert.True(t, cfg.IsWarningEnabled(WarnTrigraphs))

	cfg.ApplyWarningFlag("no-all")
	for i := Warning(0); i < WarnCount; i++ {
		assert.False(t, cfg.IsWarningEnabled(i), "warning %d still enabled after no-all", i)
	}
	cfg.ApplyWarningFlag("all")
	assert.True(t, cfg.IsWarningEnabled(WarnUndefUndefined))

	// Unknown names are ignored, matching cc.
	cfg.ApplyWarningFlag("no-such-warning")
}

func TestWarningNamesAreRegistered(t *testing.T) {
	cfg := NewConfig()
	assert.Len(t, cfg.Warnings, int(WarnCount))
	for _, info := range cfg.Warnings {
		w, ok := cfg.WarningMap[info.Name]
		require.True(t, ok, "warning %q missing from name map", info.Name)
		assert.Equal(t, info.Name, cfg.Warnings[w].Name)
		assert.NotEmpty(t, info.Description)
	}
}

func TestResolveSearchPaths(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a/include", "b/include", "plain"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	cfg := NewConfig()
	cfg.SearchPaths = []string{
		filepath.Join(root, "plain"),
		filepath.Join(root, "*", "include"),
		filepath.Join(root, "plain"), // duplicate
		filepath.Join(root, "missing"),
	}
	dirs := cfg.ResolveSearchPaths()

	assert.Equal(t, []string{
		filepath.Join(root, "plain"),
		filepath.Join(root, "a", "include"),
		filepath.Join(root, "b", "include"),
	}, dirs)
}
