// Package store persists the local display name in a small YAML profile file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MaxNameLength bounds a stored name, in runes.
const MaxNameLength = 24

type profile struct {
	DisplayName string `yaml:"display_name"`
}

// FileStore keeps the profile at a fixed path. It is safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first SaveName.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the profile location.
func (s *FileStore) Path() string { return s.path }

// LoadName returns the stored name, or "" if nothing has been saved yet.
func (s *FileStore) LoadName() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		return "", err
	}
	return clamp(p.DisplayName), nil
}

// SaveName writes name, trimmed and clamped, to the profile.
func (s *FileStore) SaveName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		// A corrupt profile is replaced rather than blocking the save.
		p = profile{}
	}
	p.DisplayName = clamp(name)

	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func (s *FileStore) read() (profile, error) {
	var p profile
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read profile %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", s.path, err)
	}
	return p, nil
}

func clamp(name string) string {
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > MaxNameLength {
		name = strings.TrimSpace(string(r[:MaxNameLength]))
	}
	return name
}
