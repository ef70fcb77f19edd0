// Package speech abstracts the capture and synthesis engines the pipeline
// talks to, and enforces the single-utterance rule: starting a new
// utterance preempts the one in flight instead of queueing behind it.
package speech

import (
	"context"
	"errors"
)

// Capture error taxonomy. The orchestrator speaks a distinct message for
// each; neither retries automatically.
var (
	ErrNoSpeech         = errors.New("speech: no speech detected")
	ErrPermissionDenied = errors.New("speech: microphone permission denied")
)

// ErrInterrupted marks an utterance cut short by intentional preemption.
// It is expected and swallowed, never surfaced to the user.
var ErrInterrupted = errors.New("speech: utterance interrupted")

// Options shape one utterance.
type Options struct {
	Rate     float64
	Pitch    float64
	Volume   float64
	Language string
}

// DefaultOptions returns neutral synthesis parameters.
func DefaultOptions() Options {
	return Options{Rate: 1.0, Pitch: 1.0, Volume: 1.0, Language: "en-US"}
}

// Synthesizer renders one utterance and returns when it finishes or the
// context is canceled.
type Synthesizer interface {
	Speak(ctx context.Context, text string, opts Options) error
}

// CaptureResult is one outcome of a capture cycle: a transcribed command or
// a classified capture error.
type CaptureResult struct {
	Text string
	Err  error
}

// Capturer is the speech-capture service. Each start cycle delivers at most
// one result (non-continuous, non-interim).
type Capturer interface {
	// StartCapture arms capture and reports whether arming succeeded.
	StartCapture(onResult func(CaptureResult)) bool
	// StopCapture disarms without delivering a result.
	StopCapture()
	// Reset returns the capturer to a clean idle state.
	Reset()
}
