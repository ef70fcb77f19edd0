// Package navflag is the one-shot mailbox between two page lifetimes: the
// executor sets the flag before clicking a navigating link, and the
// orchestrator consumes it exactly once on the next page's readiness.
package navflag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type record struct {
	AnnounceNextLoad bool      `json:"announce_next_load"`
	SetAt            time.Time `json:"set_at"`
}

// Store persists the flag across process and page lifetimes as a small JSON
// file, guarded for concurrent callers within one process.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store at path. The file is created lazily on Set.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Set arms the flag for the next page load. Setting an already-set flag is
// a no-op overwrite, never an accumulation.
func (s *Store) Set() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(record{AnnounceNextLoad: true, SetAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encoding nav flag: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating nav flag directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing nav flag: %w", err)
	}
	return nil
}

// Consume reports whether the flag was set and always clears it, so a
// second read without a fresh Set yields false. Unreadable or corrupt
// state counts as "not set".
func (s *Store) Consume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	// Clear before reporting; the flag must never fire twice even if the
	// caller crashes mid-cycle.
	_ = os.Remove(s.path)

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false
	}
	return rec.AnnounceNextLoad
}
