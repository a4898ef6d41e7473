package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/inkfold/inkfold/internal/snapstore"
	"github.com/inkfold/inkfold/internal/state"
)

// StaticStore serves pre-built snapshot artifacts from a directory of
// <id>.json files, the slow-but-always-there fallback tier. Parsed
// artifacts are cached in process; a filesystem watcher drops cached
// entries when the static build rewrites them.
type StaticStore struct {
	dir     string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	parsed map[string]*staticArtifact
}

type staticArtifact struct {
	snap *state.Snapshot
	rec  snapstore.Record
}

// NewStaticStore opens a static artifact directory and starts watching
// it. The directory must exist; an empty one is fine.
func NewStaticStore(dir string, logger *slog.Logger) (*StaticStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open static artifact dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open static artifact dir: %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch static artifact dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch static artifact dir: %w", err)
	}

	s := &StaticStore{
		dir:     dir,
		logger:  logger,
		watcher: watcher,
		parsed:  make(map[string]*staticArtifact),
	}
	go s.watchLoop()
	return s, nil
}

// Close stops the watcher.
func (s *StaticStore) Close() error {
	return s.watcher.Close()
}

// Load returns the artifact for a content id. The third result is
// false when no artifact exists; that is not an error.
func (s *StaticStore) Load(id string) (*state.Snapshot, snapstore.Record, bool, error) {
	s.mu.Lock()
	if art, ok := s.parsed[id]; ok {
		s.mu.Unlock()
		return art.snap, art.rec, true, nil
	}
	s.mu.Unlock()

	path, err := s.artifactPath(id)
	if err != nil {
		return nil, snapstore.Record{}, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, snapstore.Record{}, false, nil
	}
	if err != nil {
		return nil, snapstore.Record{}, false, fmt.Errorf("read static artifact %s: %w", id, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, snapstore.Record{}, false, fmt.Errorf("stat static artifact %s: %w", id, err)
	}

	snap, err := state.Decode(data)
	if err != nil {
		return nil, snapstore.Record{}, false, fmt.Errorf("parse static artifact %s: %w", id, err)
	}
	rec := snapstore.Record{
		ID:        id,
		Type:      string(snap.ContentType),
		Value:     json.RawMessage(data),
		UpdatedAt: info.ModTime().UnixMilli(),
	}

	s.mu.Lock()
	s.parsed[id] = &staticArtifact{snap: snap, rec: rec}
	s.mu.Unlock()
	return snap, rec, true, nil
}

// artifactPath maps a content id to its file. Ids contain colons
// ("wiki:operators") which are fine in filenames; path separators are
// rejected so an id can never escape the directory.
func (s *StaticStore) artifactPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid static artifact id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *StaticStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id := strings.TrimSuffix(filepath.Base(event.Name), ".json")
			s.mu.Lock()
			delete(s.parsed, id)
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("static artifact watcher error", slog.String("error", err.Error()))
		}
	}
}
