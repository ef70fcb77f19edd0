package speech

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// NewSynthesizer picks a synthesis backend by command name: "espeak" and
// "say" shell out to the local engine, anything else (including empty)
// logs utterances instead of voicing them.
func NewSynthesizer(command string) Synthesizer {
	switch strings.TrimSpace(command) {
	case "espeak":
		return &execSynthesizer{name: "espeak", args: espeakArgs}
	case "say":
		return &execSynthesizer{name: "say", args: sayArgs}
	}
	return &logSynthesizer{}
}

// execSynthesizer voices text through a local TTS binary. Cancellation
// kills the process, which is how preemption reaches the engine.
type execSynthesizer struct {
	name string
	args func(text string, opts Options) []string
}

func (e *execSynthesizer) Speak(ctx context.Context, text string, opts Options) error {
	cmd := exec.CommandContext(ctx, e.name, e.args(text, opts)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return fmt.Errorf("running %s: %w", e.name, err)
	}
	return nil
}

// espeak: default speed is 175 wpm, amplitude 0-200 with 100 default.
func espeakArgs(text string, opts Options) []string {
	args := []string{
		"-s", strconv.Itoa(scaled(opts.Rate, 175)),
		"-a", strconv.Itoa(scaled(opts.Volume, 100)),
		"-p", strconv.Itoa(scaled(opts.Pitch, 50)),
	}
	if opts.Language != "" {
		args = append(args, "-v", strings.ToLower(strings.SplitN(opts.Language, "-", 2)[0]))
	}
	return append(args, text)
}

// say (macOS): words per minute only; pitch and volume are voice-level.
func sayArgs(text string, opts Options) []string {
	return []string{"-r", strconv.Itoa(scaled(opts.Rate, 175)), text}
}

func scaled(factor float64, base int) int {
	if factor <= 0 {
		factor = 1.0
	}
	return int(factor * float64(base))
}

// logSynthesizer stands in when no TTS engine is configured: utterances go
// to the log, pacing roughly follows the text so preemption timing still
// behaves like real speech.
type logSynthesizer struct{}

func (l *logSynthesizer) Speak(ctx context.Context, text string, opts Options) error {
	log.Printf("speech: %q (rate=%.1f lang=%s)", text, opts.Rate, opts.Language)

	select {
	case <-time.After(utteranceDuration(text, opts.Rate)):
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	}
}

func utteranceDuration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1.0
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	// ~175 words per minute at rate 1.0.
	return time.Duration(float64(words) / (rate * 175.0 / 60.0) * float64(time.Second))
}
