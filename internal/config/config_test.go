package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/duoplan/internal/plan"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, plan.DefaultUser1Name, cfg.Users.User1)
	assert.Equal(t, plan.DefaultUser2Name, cfg.Users.User2)
	assert.Equal(t, StrategyURLToken, cfg.Sync.Strategy)
	assert.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	assert.False(t, cfg.Sync.AutoPublish)
	assert.Equal(t, 2000, cfg.Codec.SizeBudget)
	assert.False(t, cfg.Codec.Compress)
	assert.Equal(t, DefaultBaseURL, cfg.Link.BaseURL)
	assert.True(t, cfg.Link.ClipboardEnabled())
	assert.Equal(t, 3, cfg.TargetSuns)
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, filepath.Join(".duoplan", "state.db")))
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
users:
  user1: Ann
  user2: Ben
sync:
  poll_interval: 2s
  auto_publish: true
codec:
  compress: true
storage:
  path: /tmp/duoplan-test.db
link:
  base_url: https://plans.example.com/
  clipboard: false
target_suns: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Ann", cfg.Users.User1)
	assert.Equal(t, "Ben", cfg.Users.User2)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollInterval)
	assert.True(t, cfg.Sync.AutoPublish)
	assert.True(t, cfg.Codec.Compress)
	assert.Equal(t, 2000, cfg.Codec.SizeBudget, "unset fields keep defaults")
	assert.Equal(t, "/tmp/duoplan-test.db", cfg.Storage.Path)
	assert.Equal(t, "https://plans.example.com/", cfg.Link.BaseURL)
	assert.False(t, cfg.Link.ClipboardEnabled())
	assert.Equal(t, 5, cfg.TargetSuns)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Parse([]byte("storage:\n  path: ~/plans/state.db\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "plans", "state.db"), cfg.Storage.Path)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("sync:\n  pol_interval: 5s\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("users: [unclosed"))
	assert.Error(t, err)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := map[string]string{
		"unknown strategy":   "sync:\n  strategy: backend\n",
		"poll too fast":      "sync:\n  poll_interval: 10ms\n",
		"budget too small":   "codec:\n  size_budget: 10\n",
		"negative target":    "target_suns: -1\n",
		"base url not http":  "link:\n  base_url: ftp://example.com/\n",
		"base url no scheme": "link:\n  base_url: example.com\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}
