package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/loader"
	"github.com/inkfold/inkfold/internal/logstore"
	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/statecache"
)

// Config is the YAML configuration shared by all commands.
type Config struct {
	// LogDB is the SQLite file holding the event log.
	LogDB string `yaml:"log_db"`
	// SnapshotDB is the SQLite file holding snapshots. Ignored when
	// SnapshotDSN is set.
	SnapshotDB string `yaml:"snapshot_db"`
	// SnapshotDSN selects the shared Postgres snapshot store.
	SnapshotDSN string `yaml:"snapshot_dsn"`
	// StaticDir is the optional static artifact fallback directory.
	StaticDir string `yaml:"static_dir"`
	// Listen is the serve command's bind address.
	Listen string `yaml:"listen"`
	// Agent is recorded as ctx.agent on events this process appends.
	Agent string `yaml:"agent"`
	// CacheTTL bounds the bulk snapshot cache ("30s", "2m").
	CacheTTL duration `yaml:"cache_ttl"`
	// HistoryMax caps a snapshot's audit trail on the write path.
	HistoryMax int `yaml:"history_max"`
}

// duration parses Go duration strings from YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = duration(parsed)
	return nil
}

// LoadConfig reads the config file, or returns defaults when path is
// empty and no inkfold.yaml exists in the working directory.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		LogDB:      "inkfold.db",
		SnapshotDB: "inkfold.db",
		Listen:     ":8080",
		Agent:      "@cli",
		CacheTTL:   duration(statecache.DefaultTTL),
		HistoryMax: 200,
	}

	if path == "" {
		if _, err := os.Stat("inkfold.yaml"); err != nil {
			return cfg, nil
		}
		path = "inkfold.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Env bundles the wired stores and read path for one command run.
type Env struct {
	Config Config
	Log    logstore.Store
	Snaps  snapstore.Store
	Cache  *statecache.Cache
	Static *loader.StaticStore
	Loads  *loader.Loader
}

// OpenEnv opens the stores per the configuration.
func OpenEnv(opts *RootOptions) (*Env, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	log, err := logstore.Open(cfg.LogDB)
	if err != nil {
		return nil, err
	}

	var snaps snapstore.Store
	if cfg.SnapshotDSN != "" {
		snaps, err = snapstore.NewPostgres(cfg.SnapshotDSN)
	} else {
		snaps, err = snapstore.OpenSQLite(cfg.SnapshotDB)
	}
	if err != nil {
		log.Close()
		return nil, err
	}

	cache := statecache.New(statecache.WithTTL(time.Duration(cfg.CacheTTL)))

	var static *loader.StaticStore
	if cfg.StaticDir != "" {
		static, err = loader.NewStaticStore(cfg.StaticDir, slog.Default())
		if err != nil {
			log.Close()
			snaps.Close()
			return nil, err
		}
	}

	return &Env{
		Config: cfg,
		Log:    log,
		Snaps:  snaps,
		Cache:  cache,
		Static: static,
		Loads:  loader.New(snaps, log, cache, static, slog.Default()),
	}, nil
}

// Stamper returns the event stamper for this process.
func (e *Env) Stamper() eo.Stamper {
	return eo.Stamper{Agent: e.Config.Agent}
}

// Close releases the stores.
func (e *Env) Close() {
	if e.Static != nil {
		e.Static.Close()
	}
	e.Snaps.Close()
	e.Log.Close()
}
