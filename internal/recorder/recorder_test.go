package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecorderRotation(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	// Start more traces than the rotation keeps.
	for i := 0; i < MaxRotatedFiles+2; i++ {
		if err := r.Start("sess"); err != nil {
			t.Fatal(err)
		}
		r.Log(EventCycleStart, "sess", nil)
		time.Sleep(10 * time.Millisecond) // distinct mod times
	}
	r.Close()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != MaxRotatedFiles {
		t.Errorf("expected %d files, got %d", MaxRotatedFiles, len(entries))
	}
}

func TestRecorderCycleEvents(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start("session1"); err != nil {
		t.Fatal(err)
	}

	r.Log(EventHeard, "session1", "click sign in")
	r.Log(EventMatch, "session1", MatchRecord{
		Command: "click sign in",
		Source:  "local",
		Found:   true,
		Index:   0,
		Label:   "Sign in",
	})
	r.Log(EventInteract, "session1", InteractRecord{
		Action:    "click",
		Performed: true,
		Message:   "Clicked Sign in.",
	})
	r.Close()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(tempDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var evt Event
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		if evt.Timestamp.IsZero() {
			t.Error("event missing timestamp")
		}
		types = append(types, evt.Type)
	}

	want := []string{EventHeard, EventMatch, EventInteract}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("event types = %v, want %v", types, want)
	}
}

func TestRecorderLogBeforeStartDropped(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	r.Log(EventHeard, "sess", "dropped")

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no trace files before Start, got %d", len(entries))
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	if err := r.Start("sess"); err != nil {
		t.Errorf("nil Start returned %v", err)
	}
	r.Log(EventHeard, "sess", "ignored")
	if err := r.Close(); err != nil {
		t.Errorf("nil Close returned %v", err)
	}
}
