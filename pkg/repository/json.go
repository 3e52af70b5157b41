package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedmon/pkg/domain"
)

// JSONFile keeps the state as a single JSON document
type JSONFile struct {
	path string
	mu   sync.Mutex
}

// NewJSONFile makes a store backed by the file at path, the file is created on first save
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load reads the state. A missing or corrupt file yields an empty state which is saved
// immediately, the corrupt file is kept next to it with a .corrupt suffix.
func (j *JSONFile) Load(ctx context.Context) (domain.State, error) {
	data, err := os.ReadFile(j.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		lgr.Printf("[INFO] state file %s not found, starting empty", j.path)
		return j.reset(ctx)
	case err != nil:
		return domain.NewState(), fmt.Errorf("read state %s: %w", j.path, err)
	}

	state := domain.NewState()
	if err := json.Unmarshal(data, &state); err != nil {
		lgr.Printf("[WARN] state file %s is corrupt, starting empty: %v", j.path, err)
		if err := os.Rename(j.path, j.path+".corrupt"); err != nil {
			lgr.Printf("[WARN] can't keep corrupt state file: %v", err)
		}
		return j.reset(ctx)
	}

	if state.Feeds == nil {
		state.Feeds = map[string]domain.Feed{}
	}
	if state.Topics == nil {
		state.Topics = map[string]domain.Topic{}
	}
	if state.RecentMatches == nil {
		state.RecentMatches = []domain.MatchItem{}
	}
	if state.ArchivedMatches == nil {
		state.ArchivedMatches = []domain.MatchItem{}
	}
	return state, nil
}

func (j *JSONFile) reset(ctx context.Context) (domain.State, error) {
	state := domain.NewState()
	if err := j.Save(ctx, state); err != nil {
		return state, fmt.Errorf("reset state: %w", err)
	}
	return state, nil
}

// Save writes the state to a temp file and renames it over the previous one
func (j *JSONFile) Save(ctx context.Context, state domain.State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("replace state %s: %w", j.path, err)
	}
	return nil
}
