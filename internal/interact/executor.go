// Package interact performs the bounded side-effect sequence on a matched
// element: highlight, scroll, settle, act. One linear pass per invocation,
// no retries.
package interact

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"vocalweb-server/internal/dom"
)

// relocateTimeout bounds the search for the index-tagged node.
const relocateTimeout = 2 * time.Second

// NavFlagger arms the one-shot auto-announce flag before a navigating click.
type NavFlagger interface {
	Set() error
}

// Options tune the visual feedback steps.
type Options struct {
	HighlightColor    string
	HighlightDuration time.Duration
	SettleDelay       time.Duration
}

// marker applies and removes the highlight outline on an element. The
// production marker mutates inline styles in the page.
type marker interface {
	Apply(element *rod.Element, color string) error
	Remove(element *rod.Element)
}

// Executor runs interactions and owns the single-highlight rule: at most
// one element is marked system-wide, a new highlight removes the previous
// one, and every mark expires on its own after HighlightDuration.
type Executor struct {
	flags  NavFlagger
	opts   Options
	marker marker

	mu          sync.Mutex
	highlighted *rod.Element
	generation  int
}

// New builds an Executor. flags may be nil when no cross-navigation
// announcing is wanted.
func New(flags NavFlagger, opts Options) *Executor {
	if opts.HighlightColor == "" {
		opts.HighlightColor = "#ff6d00"
	}
	if opts.HighlightDuration <= 0 {
		opts.HighlightDuration = 3 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	return &Executor{flags: flags, opts: opts, marker: evalMarker{}}
}

// Interact resolves the candidate by its index tag and runs the linear
// sequence: highlight, scroll to center, settle, act. A candidate that can
// no longer be located reports a "could not interact" outcome and performs
// nothing; it never panics the cycle.
func (e *Executor) Interact(ctx context.Context, page *rod.Page, c dom.Candidate, command string) Outcome {
	action, armFlag := Plan(command, c)

	element, err := e.relocate(page, c.Index)
	if err != nil {
		log.Printf("interact: candidate %d (%s) not relocatable: %v", c.Index, c.SpokenName(), err)
		return Outcome{Action: action, Performed: false, Message: staleMessage(c)}
	}

	e.highlight(element)

	if err := scrollToCenter(element); err != nil {
		log.Printf("interact: scroll failed for candidate %d: %v", c.Index, err)
	}

	// Let the visual feedback register before the DOM mutates or navigates.
	select {
	case <-time.After(e.opts.SettleDelay):
	case <-ctx.Done():
		return Outcome{Action: action, Performed: false, Message: staleMessage(c)}
	}

	switch action {
	case ActionFocus:
		if err := element.Focus(); err != nil {
			return Outcome{Action: action, Performed: false, Message: staleMessage(c)}
		}
		return Outcome{Action: action, Performed: true, Message: focusedMessage(c)}

	default:
		if armFlag && e.flags != nil {
			// Armed before the click: the navigation may tear this page
			// down before anything after the click runs.
			if err := e.flags.Set(); err != nil {
				log.Printf("interact: arming nav flag failed: %v", err)
			}
		}
		if err := element.Click("left", 1); err != nil {
			return Outcome{Action: action, Performed: false, Message: staleMessage(c)}
		}
		return Outcome{Action: action, Performed: true, Message: clickedMessage(c)}
	}
}

// relocate finds the node tagged with the candidate's index during the
// extraction pass. A stale index (re-extraction or navigation in between)
// fails here.
func (e *Executor) relocate(page *rod.Page, index int) (*rod.Element, error) {
	selector := fmt.Sprintf(`[%s="%d"]`, dom.IndexAttr, index)
	element, err := page.Timeout(relocateTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element with index %d not found: %w", index, err)
	}

	visible, err := element.Visible()
	if err != nil || !visible {
		return nil, fmt.Errorf("element with index %d not visible", index)
	}
	return element, nil
}

// highlight marks the element, removing any previous mark first and
// scheduling automatic removal.
func (e *Executor) highlight(element *rod.Element) {
	e.mu.Lock()
	if e.highlighted != nil {
		e.marker.Remove(e.highlighted)
	}
	e.highlighted = element
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	if err := e.marker.Apply(element, e.opts.HighlightColor); err != nil {
		log.Printf("interact: highlight failed: %v", err)
	}

	time.AfterFunc(e.opts.HighlightDuration, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		// A newer highlight owns the mark now; leave it alone.
		if e.generation != gen || e.highlighted == nil {
			return
		}
		e.marker.Remove(e.highlighted)
		e.highlighted = nil
	})
}

// ClearHighlight removes the current mark, if any. The orchestrator calls
// this when a cycle is cancelled so no marker outlives its cycle.
func (e *Executor) ClearHighlight() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.highlighted != nil {
		e.marker.Remove(e.highlighted)
		e.highlighted = nil
	}
	e.generation++
}

// evalMarker edits the element's inline style. Removal is best-effort: the
// element may belong to a page that no longer exists.
type evalMarker struct{}

func (evalMarker) Apply(element *rod.Element, color string) error {
	_, err := element.Eval(`(color) => {
		this.dataset.vocalwebPrevOutline = this.style.outline || '';
		this.style.outline = '3px solid ' + color;
		this.style.outlineOffset = '2px';
	}`, color)
	return err
}

func (evalMarker) Remove(element *rod.Element) {
	_, _ = element.Eval(`() => {
		this.style.outline = this.dataset.vocalwebPrevOutline || '';
		this.style.outlineOffset = '';
		delete this.dataset.vocalwebPrevOutline;
	}`)
}

func scrollToCenter(element *rod.Element) error {
	_, err := element.Eval(`() => this.scrollIntoView({behavior: 'smooth', block: 'center', inline: 'center'})`)
	return err
}
