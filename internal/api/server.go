// Package api serves the browser extension's HTTP surface: command
// matching, page summarization, and the shared settings document. The
// extension does the DOM work itself; this side only answers questions.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"vocalweb-server/internal/dom"
	"vocalweb-server/internal/match"
	"vocalweb-server/internal/settings"
	"vocalweb-server/internal/summary"
)

// Matcher resolves a command against a candidate set.
type Matcher interface {
	Match(ctx context.Context, command string, candidates []dom.Candidate) (match.Result, match.Source)
}

// Summarizer produces a spoken page description.
type Summarizer interface {
	Summarize(ctx context.Context, info dom.PageInfo) string
}

// SettingsStore reads and writes the shared preferences document.
type SettingsStore interface {
	Get() settings.Settings
	Put(settings.Settings) error
}

// Server is the extension-facing HTTP API.
type Server struct {
	matcher   Matcher
	summaries Summarizer
	settings  SettingsStore
	version   string
}

// NewServer wires the API over its collaborators.
func NewServer(matcher Matcher, summaries Summarizer, store SettingsStore, version string) *Server {
	return &Server{
		matcher:   matcher,
		summaries: summaries,
		settings:  store,
		version:   version,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/match", s.handleMatch)
	mux.HandleFunc("/api/summarize", s.handleSummarize)
	mux.HandleFunc("/api/settings", s.handleSettings)
	return withCORS(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("api: shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type matchRequest struct {
	Command  string          `json:"command"`
	Elements []dom.Candidate `json:"elements"`
}

type matchResponse struct {
	Found        bool           `json:"found"`
	Element      *dom.Candidate `json:"element,omitempty"`
	ElementIndex *int           `json:"elementIndex,omitempty"`
	Message      string         `json:"message"`
	Source       string         `json:"source"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, source := s.matcher.Match(r.Context(), req.Command, req.Elements)
	resp := matchResponse{
		Found:   result.Found,
		Element: result.Candidate,
		Message: result.Message,
		Source:  string(source),
	}
	if result.Candidate != nil {
		idx := result.Candidate.Index
		resp.ElementIndex = &idx
	}
	writeJSON(w, http.StatusOK, resp)
}

type summarizeRequest struct {
	PageContent string          `json:"pageContent"`
	PageTitle   string          `json:"pageTitle"`
	PageURL     string          `json:"pageUrl"`
	Elements    []dom.Candidate `json:"elements"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// handleSummarize always answers 200 with spoken text. Raw HTML in the
// request body is flattened before summarization.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	info := dom.PageInfo{
		URL:      req.PageURL,
		Title:    req.PageTitle,
		Content:  summary.FlattenHTML(req.PageContent),
		Elements: req.Elements,
	}
	writeJSON(w, http.StatusOK, summarizeResponse{
		Summary: s.summaries.Summarize(r.Context(), info),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.settings.Get())

	case http.MethodPut:
		var v settings.Settings
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.settings.Put(v); err != nil {
			log.Printf("api: settings write failed: %v", err)
			http.Error(w, "could not persist settings", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, v)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: response encode failed: %v", err)
	}
}

// withCORS lets the extension's pages call the API from any origin. The
// server binds to localhost; the browser is the only expected caller.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
