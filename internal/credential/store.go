// Package credential keeps the backend API key and the last uploaded job
// id across runs.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/papertrail/internal/model"
)

// fileName is the store file inside the config directory
const fileName = "credentials.yaml"

type stored struct {
	APIKey  string `yaml:"api_key,omitempty"`
	LastJob string `yaml:"last_job,omitempty"`
}

// Store holds the credential in memory and writes it through to a YAML
// file. Nothing is read until Init and nothing is written except by Set,
// Clear, SaveJob and ClearJob. The key is persisted only when Set is asked
// to remember it.
type Store struct {
	mu       sync.RWMutex
	path     string
	key      string
	remember bool
	lastJob  string
}

// DefaultPath returns ~/.papertrail/credentials.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".papertrail", fileName), nil
}

// NewStore creates a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init loads the persisted state. A missing file leaves the store empty.
func (s *Store) Init() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}

	var st stored
	if err := yaml.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse credentials %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = strings.TrimSpace(st.APIKey)
	s.remember = s.key != ""
	s.lastJob = strings.TrimSpace(st.LastJob)
	return nil
}

// Key returns the current API key, or ""
func (s *Store) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Remembered reports whether the current key is persisted
func (s *Store) Remembered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remember
}

// Set replaces the API key. With remember the key is written to disk,
// otherwise any previously persisted key is removed from disk.
func (s *Store) Set(key string, remember bool) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.Missing("API key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.remember = remember
	return s.persistLocked()
}

// Clear forgets the API key in memory and on disk
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
	s.remember = false
	return s.persistLocked()
}

// LastJob returns the id of the last uploaded job, or ""
func (s *Store) LastJob() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastJob
}

// SaveJob records jobID as the job to resume
func (s *Store) SaveJob(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return model.Missing("job id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJob = jobID
	return s.persistLocked()
}

// ClearJob forgets the saved job id
func (s *Store) ClearJob() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJob = ""
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	st := stored{LastJob: s.lastJob}
	if s.remember {
		st.APIKey = s.key
	}

	if st == (stored{}) {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove credentials: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
