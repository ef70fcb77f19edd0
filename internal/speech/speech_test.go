package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockingSynth records utterances and blocks until its context ends or it
// is released, so tests can observe preemption.
type blockingSynth struct {
	mu      sync.Mutex
	spoken  []string
	release chan struct{}
}

func newBlockingSynth() *blockingSynth {
	return &blockingSynth{release: make(chan struct{})}
}

func (b *blockingSynth) Speak(ctx context.Context, text string, opts Options) error {
	b.mu.Lock()
	b.spoken = append(b.spoken, text)
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return ErrInterrupted
	case <-b.release:
		return nil
	}
}

func (b *blockingSynth) utterances() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.spoken...)
}

func TestSayPreemptsPreviousUtterance(t *testing.T) {
	synth := newBlockingSynth()
	speaker := NewSpeaker(synth)

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- speaker.Say(context.Background(), "first utterance", DefaultOptions())
	}()

	// Wait for the first utterance to be in flight.
	deadline := time.After(2 * time.Second)
	for len(synth.utterances()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first utterance never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- speaker.Say(context.Background(), "second utterance", DefaultOptions())
	}()

	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("preempted utterance error = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("preempted utterance never returned")
	}

	close(synth.release)
	select {
	case err := <-secondErr:
		if err != nil {
			t.Errorf("second utterance error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second utterance never completed")
	}
}

func TestStopSilencesInFlightUtterance(t *testing.T) {
	synth := newBlockingSynth()
	speaker := NewSpeaker(synth)

	errCh := make(chan error, 1)
	go func() {
		errCh <- speaker.Say(context.Background(), "stop me", DefaultOptions())
	}()

	deadline := time.After(2 * time.Second)
	for len(synth.utterances()) == 0 {
		select {
		case <-deadline:
			t.Fatal("utterance never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	speaker.Stop()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("stopped utterance error = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stopped utterance never returned")
	}

	// Stop with nothing in flight is a no-op.
	speaker.Stop()
}

type errSynth struct{ err error }

func (e *errSynth) Speak(ctx context.Context, text string, opts Options) error { return e.err }

func TestSaySwallowsSynthesisErrors(t *testing.T) {
	speaker := NewSpeaker(&errSynth{err: errors.New("engine exploded")})
	if err := speaker.Say(context.Background(), "hello", DefaultOptions()); err != nil {
		t.Errorf("non-interruption synthesis error must be treated as completed, got %v", err)
	}
}

func TestSayEmptyTextIsNoOp(t *testing.T) {
	synth := newBlockingSynth()
	speaker := NewSpeaker(synth)
	if err := speaker.Say(context.Background(), "", DefaultOptions()); err != nil {
		t.Errorf("empty Say error = %v", err)
	}
	if len(synth.utterances()) != 0 {
		t.Error("empty text must not reach the synthesizer")
	}
}

func TestChannelCapturerSingleResultPerStart(t *testing.T) {
	c := NewChannelCapturer()

	var results []CaptureResult
	if !c.StartCapture(func(r CaptureResult) { results = append(results, r) }) {
		t.Fatal("StartCapture failed")
	}

	if !c.Submit("click search") {
		t.Fatal("Submit failed while armed")
	}
	if c.Submit("second command") {
		t.Error("second Submit without restart must not deliver")
	}
	if len(results) != 1 || results[0].Text != "click search" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestChannelCapturerRejectsOverlappingStart(t *testing.T) {
	c := NewChannelCapturer()
	if !c.StartCapture(func(CaptureResult) {}) {
		t.Fatal("first StartCapture failed")
	}
	if c.StartCapture(func(CaptureResult) {}) {
		t.Error("overlapping StartCapture must fail")
	}

	c.Reset()
	if !c.StartCapture(func(CaptureResult) {}) {
		t.Error("StartCapture after Reset must succeed")
	}
}

func TestChannelCapturerFailDeliversClassifiedError(t *testing.T) {
	c := NewChannelCapturer()

	var got CaptureResult
	c.StartCapture(func(r CaptureResult) { got = r })
	if !c.Fail(ErrNoSpeech) {
		t.Fatal("Fail did not deliver")
	}
	if !errors.Is(got.Err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", got.Err)
	}
}

func TestChannelCapturerStopDropsCallback(t *testing.T) {
	c := NewChannelCapturer()
	delivered := false
	c.StartCapture(func(CaptureResult) { delivered = true })
	c.StopCapture()
	if c.Submit("late transcript") {
		t.Error("Submit after StopCapture must not deliver")
	}
	if delivered {
		t.Error("callback ran after StopCapture")
	}
}

func TestUtteranceDuration(t *testing.T) {
	if d := utteranceDuration("", 1.0); d != 0 {
		t.Errorf("empty text duration = %v", d)
	}
	slow := utteranceDuration("one two three four", 0.5)
	fast := utteranceDuration("one two three four", 2.0)
	if slow <= fast {
		t.Errorf("expected rate to shorten duration: slow=%v fast=%v", slow, fast)
	}
}

func TestNewSynthesizerSelection(t *testing.T) {
	if _, ok := NewSynthesizer("espeak").(*execSynthesizer); !ok {
		t.Error("expected exec synthesizer for espeak")
	}
	if _, ok := NewSynthesizer("").(*logSynthesizer); !ok {
		t.Error("expected log synthesizer for empty command")
	}
	if _, ok := NewSynthesizer("unknown-engine").(*logSynthesizer); !ok {
		t.Error("expected log synthesizer for unknown command")
	}
}

func TestEspeakArgs(t *testing.T) {
	args := espeakArgs("hello", Options{Rate: 2.0, Pitch: 1.0, Volume: 1.0, Language: "en-US"})
	joined := ""
	for _, a := range args {
		joined += a + " "
	}
	if args[len(args)-1] != "hello" {
		t.Errorf("text must be the final argument, got %v", args)
	}
	if args[1] != "350" {
		t.Errorf("expected doubled rate 350 wpm, got %q in %v", args[1], args)
	}
	found := false
	for i, a := range args {
		if a == "-v" && i+1 < len(args) && args[i+1] == "en" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected language voice flag in %v (joined %q)", args, joined)
	}
}
