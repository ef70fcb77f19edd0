package interact

import (
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

type markerCall struct {
	op      string
	element *rod.Element
}

// recordingMarker observes apply/remove ordering without a live page.
type recordingMarker struct {
	mu    sync.Mutex
	calls []markerCall
}

func (m *recordingMarker) Apply(element *rod.Element, color string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, markerCall{"apply", element})
	return nil
}

func (m *recordingMarker) Remove(element *rod.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, markerCall{"remove", element})
}

func (m *recordingMarker) snapshot() []markerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]markerCall(nil), m.calls...)
}

func (m *recordingMarker) waitForCalls(t *testing.T, n int) []markerCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		calls := m.snapshot()
		if len(calls) >= n {
			return calls
		}
		if time.Now().After(deadline) {
			t.Fatalf("marker never reached %d calls, got %v", n, calls)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newMarkedExecutor(duration time.Duration) (*Executor, *recordingMarker) {
	e := New(nil, Options{HighlightDuration: duration})
	rec := &recordingMarker{}
	e.marker = rec
	return e, rec
}

func TestHighlightRemovesPreviousMarkFirst(t *testing.T) {
	e, rec := newMarkedExecutor(time.Hour)
	a, b := &rod.Element{}, &rod.Element{}

	e.highlight(a)
	e.highlight(b)

	want := []markerCall{
		{"apply", a},
		{"remove", a},
		{"apply", b},
	}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHighlightAutoExpires(t *testing.T) {
	e, rec := newMarkedExecutor(20 * time.Millisecond)
	a := &rod.Element{}

	e.highlight(a)
	calls := rec.waitForCalls(t, 2)

	if calls[1] != (markerCall{"remove", a}) {
		t.Errorf("expected auto-removal of the mark, got %v", calls)
	}

	e.mu.Lock()
	highlighted := e.highlighted
	e.mu.Unlock()
	if highlighted != nil {
		t.Error("expired highlight must release the element")
	}
}

func TestHighlightExpiryIgnoresSupersededMark(t *testing.T) {
	e, rec := newMarkedExecutor(30 * time.Millisecond)
	a, b := &rod.Element{}, &rod.Element{}

	e.highlight(a)
	e.highlight(b)

	// Both expiry timers have fired by now; only b's may remove anything.
	rec.waitForCalls(t, 4)
	time.Sleep(100 * time.Millisecond)
	calls := rec.snapshot()

	want := []markerCall{
		{"apply", a},
		{"remove", a},
		{"apply", b},
		{"remove", b},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestClearHighlight(t *testing.T) {
	e, rec := newMarkedExecutor(time.Hour)
	a := &rod.Element{}

	e.highlight(a)
	e.ClearHighlight()

	calls := rec.snapshot()
	if len(calls) != 2 || calls[1] != (markerCall{"remove", a}) {
		t.Fatalf("calls = %v, want apply then remove", calls)
	}

	// Clearing with nothing highlighted is a no-op.
	e.ClearHighlight()
	if got := rec.snapshot(); len(got) != 2 {
		t.Errorf("extra marker calls after empty clear: %v", got)
	}
}
