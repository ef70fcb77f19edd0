// Package settings holds the flat user preferences shared with the
// extension popup: a JSON file on disk, re-read on every access so reads
// stay eventually consistent with the most recent writer.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings is the flat preference map. Field names mirror the wire keys
// the popup reads and writes.
type Settings struct {
	Enabled        bool    `json:"enabled"`
	SpeechRate     float64 `json:"speechRate"`
	SpeechPitch    float64 `json:"speechPitch"`
	SpeechVolume   float64 `json:"speechVolume"`
	Language       string  `json:"language"`
	HighlightColor string  `json:"highlightColor"`
	AutoSummary    bool    `json:"autoSummary"`
	BackendAddr    string  `json:"backendAddress"`
}

// Default returns the preferences used until the user changes anything.
func Default() Settings {
	return Settings{
		Enabled:        true,
		SpeechRate:     1.0,
		SpeechPitch:    1.0,
		SpeechVolume:   1.0,
		Language:       "en-US",
		HighlightColor: "#ff6d00",
		AutoSummary:    true,
		BackendAddr:    "http://localhost:8420",
	}
}

// Store persists Settings as one JSON file.
type Store struct {
	mu       sync.Mutex
	path     string
	defaults Settings
}

// NewStore creates a store at path. The file appears on the first write;
// until then reads return Default().
func NewStore(path string) *Store {
	return NewStoreWithDefaults(path, Default())
}

// NewStoreWithDefaults creates a store whose unset preferences come from
// defaults instead of Default(), letting server config seed keys like
// autoSummary and highlightColor before the user ever saves anything.
func NewStoreWithDefaults(path string, defaults Settings) *Store {
	return &Store{path: path, defaults: defaults}
}

// Get returns the current preferences. A missing or unreadable file yields
// defaults; a partial file yields defaults overlaid with what was stored.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Put replaces the stored preferences wholesale.
func (s *Store) Put(v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(v)
}

// Update applies fn to the current preferences and persists the result,
// returning the new snapshot.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.load()
	fn(&v)
	if err := s.save(v); err != nil {
		return v, err
	}
	return v, nil
}

func (s *Store) load() Settings {
	v := s.defaults
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return s.defaults
	}
	return v
}

func (s *Store) save(v Settings) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating settings directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// ApplyKey sets one named preference from a loosely-typed value, as arrives
// from MCP tool arguments. Unknown keys and wrong value types are errors.
func ApplyKey(v *Settings, key string, value interface{}) error {
	switch strings.TrimSpace(key) {
	case "enabled":
		return applyBool(&v.Enabled, key, value)
	case "speechRate":
		return applyFloat(&v.SpeechRate, key, value)
	case "speechPitch":
		return applyFloat(&v.SpeechPitch, key, value)
	case "speechVolume":
		return applyFloat(&v.SpeechVolume, key, value)
	case "language":
		return applyString(&v.Language, key, value)
	case "highlightColor":
		return applyString(&v.HighlightColor, key, value)
	case "autoSummary":
		return applyBool(&v.AutoSummary, key, value)
	case "backendAddress":
		return applyString(&v.BackendAddr, key, value)
	}
	return fmt.Errorf("unknown setting %q", key)
}

func applyBool(dst *bool, key string, value interface{}) error {
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("setting %q expects a boolean, got %T", key, value)
	}
	*dst = b
	return nil
}

func applyFloat(dst *float64, key string, value interface{}) error {
	switch f := value.(type) {
	case float64:
		*dst = f
	case int:
		*dst = float64(f)
	default:
		return fmt.Errorf("setting %q expects a number, got %T", key, value)
	}
	return nil
}

func applyString(dst *string, key string, value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("setting %q expects a string, got %T", key, value)
	}
	*dst = s
	return nil
}
