// Package match resolves a transcribed voice command to one extracted
// candidate, preferring a remote ranking service and degrading to a local
// substring heuristic when the service is unavailable.
package match

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"vocalweb-server/internal/dom"
)

// NoMatch is the ranker sentinel for "no candidate fits the command".
const NoMatch = -1

// Messages spoken back to the user for the two failure shapes.
const (
	MsgNoElements = "There are no interactive elements on this page."
	MsgNoMatch    = "I could not find a matching element."
)

// Result is the outcome of matching a command against a candidate set.
// Found=false implies Candidate is nil; Found=true implies Candidate.Index
// is a valid index into the set handed to Match.
type Result struct {
	Found     bool           `json:"found"`
	Candidate *dom.Candidate `json:"element,omitempty"`
	Message   string         `json:"message"`
}

// Source records which path produced a result. Callers never branch on it;
// it feeds logs and cycle traces only.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Ranker is the remote ranking service. It returns the winning candidate
// index, NoMatch when the service decides nothing fits, or an error when
// the service is unavailable or its response is unusable.
type Ranker interface {
	RankElements(ctx context.Context, command string, candidates []dom.Candidate) (int, error)
}

// Matcher collapses the remote-or-local decision into a single Result.
type Matcher struct {
	ranker  Ranker
	timeout time.Duration
}

// New builds a Matcher. A nil ranker means every match runs the local
// heuristic. timeout bounds the remote wait; zero keeps a 10s default.
func New(ranker Ranker, timeout time.Duration) *Matcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Matcher{ranker: ranker, timeout: timeout}
}

// Match resolves command against candidates and reports which path decided.
// It never returns an error: remote unavailability is absorbed into the
// fallback path and an empty candidate set yields a definite not-found
// Result without a remote call.
func (m *Matcher) Match(ctx context.Context, command string, candidates []dom.Candidate) (Result, Source) {
	result, source := m.match(ctx, command, candidates)
	log.Printf("match: source=%s found=%v command=%q", source, result.Found, command)
	return result, source
}

func (m *Matcher) match(ctx context.Context, command string, candidates []dom.Candidate) (Result, Source) {
	if len(candidates) == 0 {
		return Result{Found: false, Message: MsgNoElements}, SourceLocal
	}

	if m.ranker != nil {
		rctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		idx, err := m.ranker.RankElements(rctx, command, candidates)
		if err == nil {
			// An out-of-range index means the same thing as the sentinel.
			if idx < 0 || idx >= len(candidates) {
				return Result{Found: false, Message: MsgNoMatch}, SourceRemote
			}
			c := candidates[idx]
			return Result{Found: true, Candidate: &c, Message: foundMessage(c)}, SourceRemote
		}
		log.Printf("match: remote ranker unavailable, using local fallback: %v", err)
	}

	return Fallback(command, candidates), SourceLocal
}

// Fallback is the local heuristic: lowercase both sides and take the first
// candidate, in index order, whose label contains the command or is
// contained by it. First match wins; there is no ranking among multiple
// satisfying candidates, and that ordering is a behavioral contract.
func Fallback(command string, candidates []dom.Candidate) Result {
	cmd := strings.ToLower(strings.TrimSpace(command))
	if cmd == "" {
		return Result{Found: false, Message: MsgNoMatch}
	}

	for _, c := range candidates {
		label := strings.ToLower(strings.TrimSpace(c.Label()))
		if label == "" {
			continue
		}
		if strings.Contains(cmd, label) || strings.Contains(label, cmd) {
			matched := c
			return Result{Found: true, Candidate: &matched, Message: foundMessage(matched)}
		}
	}

	return Result{Found: false, Message: MsgNoMatch}
}

func foundMessage(c dom.Candidate) string {
	return fmt.Sprintf("Found %s.", c.SpokenName())
}
