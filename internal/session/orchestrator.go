// Package session coordinates one voice command cycle end to end: prompt,
// listen, extract, match, interact, speak the outcome. At most one cycle
// runs at a time; a new trigger while one is active is rejected, not queued.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"vocalweb-server/internal/config"
	"vocalweb-server/internal/dom"
	"vocalweb-server/internal/interact"
	"vocalweb-server/internal/match"
	"vocalweb-server/internal/recorder"
	"vocalweb-server/internal/settings"
	"vocalweb-server/internal/speech"
)

// ErrCycleActive is returned when a cycle is triggered while another one is
// still in flight.
var ErrCycleActive = errors.New("session: a command cycle is already active")

// Spoken capture-failure messages, one per error class.
const (
	MsgNoSpeechHeard  = "I did not hear anything. Try again when you are ready."
	MsgMicDenied      = "I need microphone permission to listen for commands."
	MsgCaptureFailed  = "Something went wrong while listening. Please try again."
	MsgPageUnreadable = "I could not read this page."
	MsgVoiceDisabled  = "Voice control is turned off in settings."
)

// Browser is the per-session page surface the orchestrator drives. The
// production implementation sits on a live DevTools page; tests substitute
// fakes.
type Browser interface {
	Extract(ctx context.Context, sessionID string) ([]dom.Candidate, error)
	PageInfo(ctx context.Context, sessionID string) (dom.PageInfo, error)
	Interact(ctx context.Context, sessionID string, c dom.Candidate, command string) interact.Outcome
	ClearHighlight()
}

// Matcher resolves a spoken command against a candidate set and reports
// whether the remote ranker or the local heuristic decided.
type Matcher interface {
	Match(ctx context.Context, command string, candidates []dom.Candidate) (match.Result, match.Source)
}

// Summarizer produces a spoken page description.
type Summarizer interface {
	Summarize(ctx context.Context, info dom.PageInfo) string
}

// NavFlags is the one-shot cross-navigation announce flag.
type NavFlags interface {
	Consume() bool
}

// Speaker voices text to the user.
type Speaker interface {
	Say(ctx context.Context, text string, opts speech.Options) error
	Stop()
}

// SettingsSource provides the current user preferences; re-read at each use
// so edits apply to the next cycle without a restart.
type SettingsSource interface {
	Get() settings.Settings
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Browser    Browser
	Matcher    Matcher
	Summarizer Summarizer
	Flags      NavFlags
	Speaker    Speaker
	Capturer   speech.Capturer
	Settings   SettingsSource
	Recorder   *recorder.Recorder
	Voice      config.VoiceConfig
}

// Orchestrator owns cycle lifecycle and the pending-summary cache.
type Orchestrator struct {
	deps Deps

	mu      sync.Mutex
	busy    bool
	cancel  context.CancelFunc
	pending map[string]string // sessionID -> prefetched summary
}

// New builds an Orchestrator from its collaborators.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:    deps,
		pending: make(map[string]string),
	}
}

// OnPageReady handles a completed page load in a session. When the one-shot
// navigation flag is armed, the new page is summarized and spoken
// immediately, followed by an invitation for the next command. Otherwise,
// if auto summaries are enabled, the summary is prefetched after a short
// delay and cached silently for the next cycle.
func (o *Orchestrator) OnPageReady(ctx context.Context, sessionID string) {
	o.deps.Recorder.Log(recorder.EventPageLoad, sessionID, nil)

	if o.deps.Flags.Consume() {
		o.announcePage(ctx, sessionID)
		return
	}

	if !o.currentSettings().AutoSummary {
		return
	}

	// Give the page a moment to settle before reading it.
	go func() {
		select {
		case <-time.After(o.deps.Voice.GetSummaryDelay()):
		case <-ctx.Done():
			return
		}
		o.prefetchSummary(ctx, sessionID)
	}()
}

// RunCycle executes one full listen-match-interact cycle for a session. It
// returns ErrCycleActive when a cycle is already running; any other outcome
// is delivered to the user by voice, never as an error.
func (o *Orchestrator) RunCycle(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrCycleActive
	}
	cctx, cancel := context.WithCancel(ctx)
	o.busy = true
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		cancel()
		o.mu.Lock()
		o.busy = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	o.deps.Recorder.Log(recorder.EventCycleStart, sessionID, nil)
	defer o.deps.Recorder.Log(recorder.EventCycleEnd, sessionID, nil)

	st := o.currentSettings()
	if !st.Enabled {
		o.say(cctx, sessionID, MsgVoiceDisabled)
		return nil
	}

	// A summary prefetched since the last cycle is delivered first, once.
	if cached := o.takePending(sessionID); cached != "" {
		o.say(cctx, sessionID, cached)
	}

	o.say(cctx, sessionID, o.deps.Voice.ListenPrompt)

	candidates, err := o.deps.Browser.Extract(cctx, sessionID)
	if err != nil {
		log.Printf("session: extraction failed for %s: %v", sessionID, err)
		o.say(cctx, sessionID, MsgPageUnreadable)
		return nil
	}
	if len(candidates) == 0 {
		o.say(cctx, sessionID, match.MsgNoElements)
		return nil
	}

	command, capErr := o.listen(cctx)
	if capErr != nil {
		if errors.Is(capErr, context.Canceled) {
			return nil
		}
		o.say(cctx, sessionID, captureMessage(capErr))
		return nil
	}
	o.deps.Recorder.Log(recorder.EventHeard, sessionID, command)

	result, source := o.deps.Matcher.Match(cctx, command, candidates)
	rec := recorder.MatchRecord{Command: command, Source: string(source), Found: result.Found}
	if result.Candidate != nil {
		rec.Index = result.Candidate.Index
		rec.Label = result.Candidate.Label()
	}
	o.deps.Recorder.Log(recorder.EventMatch, sessionID, rec)

	if !result.Found {
		o.say(cctx, sessionID, result.Message)
		return nil
	}

	outcome := o.deps.Browser.Interact(cctx, sessionID, *result.Candidate, command)
	o.deps.Recorder.Log(recorder.EventInteract, sessionID, recorder.InteractRecord{
		Action:    string(outcome.Action),
		Performed: outcome.Performed,
		Message:   outcome.Message,
	})
	o.say(cctx, sessionID, outcome.Message)
	return nil
}

// Cancel aborts the active cycle, silences speech, disarms capture, and
// removes any highlight marker. Safe to call when nothing is running.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.deps.Capturer.StopCapture()
	o.deps.Speaker.Stop()
	o.deps.Browser.ClearHighlight()
}

// Busy reports whether a cycle is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// announcePage speaks the new page's summary and invites the next command.
func (o *Orchestrator) announcePage(ctx context.Context, sessionID string) {
	info, err := o.deps.Browser.PageInfo(ctx, sessionID)
	if err != nil {
		log.Printf("session: page info failed for %s: %v", sessionID, err)
		return
	}
	text := o.deps.Summarizer.Summarize(ctx, info)
	o.say(ctx, sessionID, text)
	o.say(ctx, sessionID, o.deps.Voice.FollowUpPrompt)

	// The announcement supersedes anything prefetched for this session.
	o.mu.Lock()
	delete(o.pending, sessionID)
	o.mu.Unlock()
}

func (o *Orchestrator) prefetchSummary(ctx context.Context, sessionID string) {
	info, err := o.deps.Browser.PageInfo(ctx, sessionID)
	if err != nil {
		log.Printf("session: summary prefetch failed for %s: %v", sessionID, err)
		return
	}
	text := o.deps.Summarizer.Summarize(ctx, info)

	o.mu.Lock()
	o.pending[sessionID] = text
	o.mu.Unlock()
}

func (o *Orchestrator) takePending(sessionID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	text := o.pending[sessionID]
	delete(o.pending, sessionID)
	return text
}

// listen arms capture and blocks for exactly one result or cancellation.
// The capturer is reset first so a session left armed by an aborted cycle
// cannot wedge every cycle after it.
func (o *Orchestrator) listen(ctx context.Context) (string, error) {
	o.deps.Capturer.Reset()

	results := make(chan speech.CaptureResult, 1)
	ok := o.deps.Capturer.StartCapture(func(r speech.CaptureResult) {
		results <- r
	})
	if !ok {
		return "", errors.New("capture already armed")
	}

	select {
	case r := <-results:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Text, nil
	case <-ctx.Done():
		o.deps.Capturer.StopCapture()
		return "", context.Canceled
	}
}

func (o *Orchestrator) say(ctx context.Context, sessionID, text string) {
	if text == "" {
		return
	}
	o.deps.Recorder.Log(recorder.EventSpoke, sessionID, text)
	st := o.currentSettings()
	opts := speech.Options{
		Rate:     st.SpeechRate,
		Pitch:    st.SpeechPitch,
		Volume:   st.SpeechVolume,
		Language: st.Language,
	}
	if err := o.deps.Speaker.Say(ctx, text, opts); err != nil && !errors.Is(err, speech.ErrInterrupted) {
		log.Printf("session: speak failed: %v", err)
	}
}

func (o *Orchestrator) currentSettings() settings.Settings {
	if o.deps.Settings == nil {
		return settings.Default()
	}
	return o.deps.Settings.Get()
}

func captureMessage(err error) string {
	switch {
	case errors.Is(err, speech.ErrNoSpeech):
		return MsgNoSpeechHeard
	case errors.Is(err, speech.ErrPermissionDenied):
		return MsgMicDenied
	default:
		return MsgCaptureFailed
	}
}
