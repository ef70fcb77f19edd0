package session

import (
	"context"
	"fmt"

	"vocalweb-server/internal/browser"
	"vocalweb-server/internal/dom"
	"vocalweb-server/internal/interact"
)

// RodBridge implements Browser over live DevTools pages. Each extraction
// replaces the session's candidate snapshot so later lookups by index refer
// to the same pass.
type RodBridge struct {
	manager         *browser.SessionManager
	executor        *interact.Executor
	maxContentChars int
}

// NewRodBridge wires the session manager and executor into the
// orchestrator's page surface.
func NewRodBridge(manager *browser.SessionManager, executor *interact.Executor, maxContentChars int) *RodBridge {
	return &RodBridge{
		manager:         manager,
		executor:        executor,
		maxContentChars: maxContentChars,
	}
}

// Extract runs an extraction pass on the session's page and records the
// result as the session's current snapshot.
func (b *RodBridge) Extract(ctx context.Context, sessionID string) ([]dom.Candidate, error) {
	page, ok := b.manager.Page(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s has no live page", sessionID)
	}

	candidates, err := dom.Extract(page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("extract elements: %w", err)
	}
	if snap := b.manager.SnapshotFor(sessionID); snap != nil {
		snap.Replace(candidates)
	}
	return candidates, nil
}

// PageInfo reads the page's title, URL, flattened text, and current
// interactive elements.
func (b *RodBridge) PageInfo(ctx context.Context, sessionID string) (dom.PageInfo, error) {
	page, ok := b.manager.Page(sessionID)
	if !ok {
		return dom.PageInfo{}, fmt.Errorf("session %s has no live page", sessionID)
	}
	return dom.ExtractPageInfo(page.Context(ctx), b.maxContentChars)
}

// Interact dispatches the matched candidate to the executor on the
// session's page.
func (b *RodBridge) Interact(ctx context.Context, sessionID string, c dom.Candidate, command string) interact.Outcome {
	page, ok := b.manager.Page(sessionID)
	if !ok {
		return interact.Outcome{
			Performed: false,
			Message:   fmt.Sprintf("I lost the page for session %s.", sessionID),
		}
	}
	return b.executor.Interact(ctx, page, c, command)
}

// ClearHighlight removes the active highlight marker, if any.
func (b *RodBridge) ClearHighlight() {
	b.executor.ClearHighlight()
}
