// Package browser owns the Chrome connection and the per-session state the
// voice pipeline works against.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"vocalweb-server/internal/config"
	"vocalweb-server/internal/dom"
)

// Session describes the public metadata for a tracked browser context.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta     Session
	page     *rod.Page
	snapshot *Snapshot
}

// Snapshot holds the most recent extraction pass for one session. A new
// pass supersedes the whole set; indices from an older pass are invalid.
type Snapshot struct {
	mu         sync.RWMutex
	candidates []dom.Candidate
	takenAt    time.Time
	generation int
}

// NewSnapshot returns an empty snapshot (generation 0, no candidates).
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Replace installs a fresh extraction pass and bumps the generation.
func (s *Snapshot) Replace(candidates []dom.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = candidates
	s.takenAt = time.Now()
	s.generation++
}

// Candidates returns the current pass. The slice must not be mutated.
func (s *Snapshot) Candidates() []dom.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidates
}

// Candidate returns the candidate at index from the current pass.
func (s *Snapshot) Candidate(index int) (dom.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.candidates) {
		return dom.Candidate{}, false
	}
	return s.candidates[index], true
}

// Clear drops the current pass, e.g. when the page navigates away.
func (s *Snapshot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = nil
	s.generation++
}

// Generation identifies the extraction pass; it changes whenever the set
// is replaced or cleared.
func (s *Snapshot) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// LoadListener is notified after a tracked page finishes loading. The
// orchestrator uses it for the cross-navigation auto-announce contract.
type LoadListener func(ctx context.Context, sessionID string)

// SessionManager owns the detached Chrome instance and tracks active sessions.
type SessionManager struct {
	cfg        config.BrowserConfig
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*sessionRecord
	controlURL string
	onLoad     LoadListener
}

func NewSessionManager(cfg config.BrowserConfig) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*sessionRecord),
	}
}

// SetLoadListener registers the page-ready callback. Must be called before
// sessions are created.
func (m *SessionManager) SetLoadListener(fn LoadListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLoad = fn
}

// Start connects to an existing Chrome or launches a new one using Rod's launcher.
func (m *SessionManager) Start(ctx context.Context) error {
	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		log.Printf("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.mu.Lock()
		m.sessions = make(map[string]*sessionRecord)
		m.mu.Unlock()
	}

	if err := m.loadSessions(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
		for _, rawFlag := range m.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Fallback: let Rod pick the port and defaults.
			fallback := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
			if alt, altErr := fallback.Launch(); altErr == nil {
				controlURL = alt
			} else {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		return errors.New("no debugger_url or launch command provided")
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	log.Printf("browser connected at %s", controlURL)
	return nil
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is currently connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown closes tracked pages and the underlying browser.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.sessions {
		if record.page != nil {
			_ = record.page.Close()
		}
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	log.Printf("browser shutdown complete")
	return err
}

// List returns lightweight metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// CreateSession opens a new page and tracks it.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if m.browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Printf("warning: failed to set viewport: %v", err)
	}

	// Best-effort load; a slow page must not block session creation.
	_ = page.Timeout(m.cfg.NavigationTimeout()).Navigate(url)

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page, snapshot: NewSnapshot()}
	m.mu.Unlock()

	m.watchLoads(ctx, meta.ID, page)
	_ = m.persistSessions()

	return &meta, nil
}

// Attach binds to an existing target by TargetID.
func (m *SessionManager) Attach(ctx context.Context, targetID string) (*Session, error) {
	if m.browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := m.browser.Timeout(m.cfg.AttachTimeout()).PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	// The attach timeout must not outlive the call itself.
	page = page.Context(m.browser.GetContext())

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   targetID,
		Status:     "attached",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page, snapshot: NewSnapshot()}
	m.mu.Unlock()

	m.watchLoads(ctx, meta.ID, page)
	_ = m.persistSessions()
	return &meta, nil
}

// Page returns the underlying Rod page for a session when present.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.page == nil {
		return nil, false
	}
	return rec.page, true
}

// SnapshotFor returns the candidate snapshot for a session, nil when the
// session is unknown.
func (m *SessionManager) SnapshotFor(sessionID string) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	return rec.snapshot
}

// UpdateMetadata refreshes metadata (e.g., URL/title after navigation).
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// GetSession returns the current session metadata when available.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// watchLoads subscribes to page load events: each load invalidates the
// candidate snapshot, refreshes metadata, and notifies the load listener.
func (m *SessionManager) watchLoads(ctx context.Context, sessionID string, page *rod.Page) {
	go page.Context(ctx).EachEvent(func(e *proto.PageLoadEventFired) {
		m.handleLoad(ctx, sessionID, page)
	})()
}

func (m *SessionManager) handleLoad(ctx context.Context, sessionID string, page *rod.Page) {
	if snap := m.SnapshotFor(sessionID); snap != nil {
		snap.Clear()
	}

	info, err := page.Info()
	if err == nil {
		m.UpdateMetadata(sessionID, func(s Session) Session {
			s.URL = info.URL
			s.Title = info.Title
			s.LastActive = time.Now()
			return s
		})
		_ = m.persistSessions()
	}

	m.mu.RLock()
	onLoad := m.onLoad
	m.mu.RUnlock()
	if onLoad != nil {
		onLoad(ctx, sessionID)
	}
}

func (m *SessionManager) persistSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	m.mu.RLock()
	sessions := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		sessions = append(sessions, rec.meta)
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionStore, data, 0o644)
}

// loadSessions loads persisted metadata (does not auto-attach to pages).
func (m *SessionManager) loadSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	data, err := os.ReadFile(m.cfg.SessionStore)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		// Detached until a caller re-binds to a live target.
		s.Status = "detached"
		m.sessions[s.ID] = &sessionRecord{meta: s, snapshot: NewSnapshot()}
	}
	return nil
}
