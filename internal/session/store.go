package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ajitpratap0/ees/internal/domain"
)

// StateStore persists SessionState across process restarts, so a crash
// mid-session resumes in the same phase rather than re-entering DARK.
type StateStore interface {
	Load(ctx context.Context) (domain.SessionState, bool, error)
	Save(ctx context.Context, state domain.SessionState) error
}

// FileStateStore persists session state as indented JSON, writing to a
// temp file in the same directory and renaming over the target so a crash
// mid-write never leaves a truncated state file behind. Grounded on
// Trader.saveStateFrom/loadState's write-tmp-then-rename idiom.
type FileStateStore struct {
	path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

func (s *FileStateStore) Load(ctx context.Context) (domain.SessionState, bool, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("failed to read session state: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("failed to parse session state: %w", err)
	}
	return state, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, state domain.SessionState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to commit session state: %w", err)
	}
	return nil
}
