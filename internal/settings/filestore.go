package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"diskdash/internal/atomicfile"
)

// FileStore keeps settings in a YAML file. A missing file reads as an
// empty tree, so the cache falls back to defaults.
type FileStore struct {
	path    string
	version string

	mu sync.Mutex
}

// NewFileStore returns a store at path reporting version as the server
// version.
func NewFileStore(path, version string) *FileStore {
	return &FileStore{path: path, version: version}
}

func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Settings: t, ServerVersion: s.version}, nil
}

// Save replaces the file contents with settings and returns them as read
// back from disk.
func (s *FileStore) Save(_ context.Context, settings Tree) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(settings); err != nil {
		return Snapshot{}, err
	}
	t, err := s.read()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Settings: t, ServerVersion: s.version}, nil
}

func (s *FileStore) read() (Tree, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Tree{}, nil
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	t := Tree{}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", s.path, err)
	}
	return Normalize(t).(Tree), nil
}

func (s *FileStore) write(t Tree) error {
	if s.path == "" {
		return errors.New("settings path is empty")
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return atomicfile.Write(s.path, data)
}
