package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Run from an empty directory so no stray inkfold.yaml is picked up.
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "inkfold.db", cfg.LogDB)
	assert.Equal(t, "inkfold.db", cfg.SnapshotDB)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "@cli", cfg.Agent)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.CacheTTL))
	assert.Equal(t, 200, cfg.HistoryMax)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_db: /var/lib/inkfold/log.db
snapshot_dsn: postgres://localhost/inkfold
static_dir: /srv/static
listen: ":9090"
agent: "@worker"
cache_ttl: 2m
history_max: 50
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/inkfold/log.db", cfg.LogDB)
	assert.Equal(t, "postgres://localhost/inkfold", cfg.SnapshotDSN)
	assert.Equal(t, "/srv/static", cfg.StaticDir)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "@worker", cfg.Agent)
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.CacheTTL))
	assert.Equal(t, 50, cfg.HistoryMax)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: \"@bot\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "@bot", cfg.Agent)
	assert.Equal(t, "inkfold.db", cfg.LogDB)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.CacheTTL))
}

func TestLoadConfig_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_ttl: soon\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
