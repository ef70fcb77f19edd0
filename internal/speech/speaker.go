package speech

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Speaker serializes utterances over one Synthesizer: at most one in flight
// system-wide, a new Say preempts the previous one, Stop silences
// everything. Interruption is swallowed; any other synthesis error is
// logged and treated as a completed utterance so the cycle can proceed.
type Speaker struct {
	synth Synthesizer

	mu      sync.Mutex
	cancel  context.CancelFunc
	current uint64
}

// NewSpeaker wraps a synthesizer in the single-utterance rule.
func NewSpeaker(synth Synthesizer) *Speaker {
	return &Speaker{synth: synth}
}

// Say speaks text and blocks until the utterance completes, is preempted,
// or ctx ends. It returns ErrInterrupted on preemption and nil otherwise.
func (s *Speaker) Say(ctx context.Context, text string, opts Options) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	uctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.current++
	id := s.current
	s.mu.Unlock()

	err := s.synth.Speak(uctx, text, opts)

	s.mu.Lock()
	if s.current == id {
		s.cancel = nil
	}
	s.mu.Unlock()
	cancel()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, ErrInterrupted):
		return ErrInterrupted
	default:
		log.Printf("speech: synthesis error treated as completed utterance: %v", err)
		return nil
	}
}

// Stop silences any in-flight utterance immediately. Safe to call with
// nothing speaking.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
