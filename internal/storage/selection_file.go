package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	currentStateVersion = 1
	stateDirMode        = 0o700
	stateFileMode       = 0o600
	tempFilePattern     = ".state-*.tmp"
)

type stateFileSchema struct {
	Version   int      `toml:"version"`
	Chains    []string `toml:"chains"`
	UpdatedAt string   `toml:"updated_at,omitempty"`
}

func (s *stateFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentStateVersion
	}
}

func (s stateFileSchema) validateVersion() error {
	if s.Version > currentStateVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentStateVersion)
	}
	return nil
}

// SelectionFile keeps the selection in a TOML state file.
type SelectionFile struct {
	path string
	now  func() time.Time
	mu   sync.RWMutex
}

var _ SelectionStore = (*SelectionFile)(nil)

func NewSelectionFile(path string) *SelectionFile {
	return &SelectionFile{path: path, now: time.Now}
}

// Path returns the location of the state file.
func (f *SelectionFile) Path() string {
	return f.path
}

func (f *SelectionFile) LoadSelection(ctx context.Context) ([]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read state file: %w", err)
	}

	var file stateFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, false, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return nil, false, err
	}
	if file.Chains == nil {
		file.Chains = []string{}
	}
	return file.Chains, true, nil
}

func (f *SelectionFile) SaveSelection(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file := stateFileSchema{
		Chains:    append([]string{}, ids...),
		UpdatedAt: f.now().UTC().Format(time.RFC3339),
	}
	file.applyDefaults()
	return writeTOMLFile(f.path, file)
}

func writeTOMLFile(path string, file any) error {
	if err := os.MkdirAll(filepath.Dir(path), stateDirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	cleanup = false
	return nil
}
