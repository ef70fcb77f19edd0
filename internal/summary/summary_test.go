package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"vocalweb-server/internal/dom"
	"vocalweb-server/internal/llm"
)

type stubRemote struct {
	text string
	err  error
}

func (s *stubRemote) SummarizePage(ctx context.Context, req llm.SummaryRequest) (string, error) {
	return s.text, s.err
}

func TestSummarizeRemoteSuccess(t *testing.T) {
	svc := New(&stubRemote{text: "A login page with two buttons."}, time.Second)
	got := svc.Summarize(context.Background(), dom.PageInfo{Title: "Login"})
	if got != "A login page with two buttons." {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestSummarizeRemoteFailureFallsBack(t *testing.T) {
	svc := New(&stubRemote{err: errors.New("boom")}, time.Second)
	info := dom.PageInfo{
		Title:   "Login",
		Content: "Welcome back. Enter your credentials to continue.",
		Elements: []dom.Candidate{
			{Index: 0, Tag: "input", Text: "Email"},
			{Index: 1, Tag: "button", Text: "Sign In"},
		},
	}

	got := svc.Summarize(context.Background(), info)
	if !strings.Contains(got, "Login") {
		t.Errorf("fallback summary missing title: %q", got)
	}
	if !strings.Contains(got, "Sign In") {
		t.Errorf("fallback summary missing element label: %q", got)
	}
	if !strings.Contains(got, UsageInstructions) {
		t.Errorf("fallback summary missing usage instructions: %q", got)
	}
}

func TestSummarizeNilRemote(t *testing.T) {
	svc := New(nil, time.Second)
	got := svc.Summarize(context.Background(), dom.PageInfo{Title: "Docs"})
	if !strings.Contains(got, "Docs") {
		t.Errorf("expected local summary, got %q", got)
	}
}

func TestLocalDeterministic(t *testing.T) {
	info := dom.PageInfo{
		Title:   "Store",
		Content: "Buy things here.",
		Elements: []dom.Candidate{
			{Index: 0, Tag: "a", Text: "Home"},
		},
	}
	if Local(info) != Local(info) {
		t.Error("local summary must be deterministic for identical input")
	}
}

func TestLocalCapsListedElements(t *testing.T) {
	info := dom.PageInfo{Title: "Big"}
	for i := 0; i < 40; i++ {
		info.Elements = append(info.Elements, dom.Candidate{
			Index: i, Tag: "a", Text: fmt.Sprintf("Link %d", i),
		})
	}

	got := Local(info)
	if !strings.Contains(got, "Link 19") {
		t.Errorf("expected the 20th label to be listed: %q", got)
	}
	if strings.Contains(got, "Link 20") {
		t.Errorf("expected at most 20 labels listed: %q", got)
	}
	if !strings.Contains(got, "40 interactive elements") {
		t.Errorf("expected total element count in summary: %q", got)
	}
}

func TestLocalEmptyPage(t *testing.T) {
	got := Local(dom.PageInfo{})
	if !strings.Contains(got, "untitled") {
		t.Errorf("expected untitled placeholder: %q", got)
	}
	if !strings.Contains(got, "no interactive elements") {
		t.Errorf("expected empty-element wording: %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		max   int
		check func(string) bool
	}{
		{"short text unchanged", "hello world", 50, func(s string) bool { return s == "hello world" }},
		{"whitespace collapsed", "a \n\t b", 50, func(s string) bool { return s == "a b" }},
		{"long text ellipsized", strings.Repeat("word ", 100), 40, func(s string) bool {
			return strings.HasSuffix(s, "...") && len(s) <= 44
		}},
		{"empty", "", 40, func(s string) bool { return s == "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Excerpt(tt.text, tt.max)
			if !tt.check(got) {
				t.Errorf("Excerpt(%q, %d) = %q", tt.text, tt.max, got)
			}
		})
	}
}

func TestFlattenHTML(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
	<body><h1>Title</h1><script>var x = 1;</script><p>Some   text
	here.</p></body></html>`

	got := FlattenHTML(html)
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Some text here.") {
		t.Errorf("unexpected flattened text %q", got)
	}
	if strings.Contains(got, "var x") || strings.Contains(got, "color:red") {
		t.Errorf("script/style content leaked into text: %q", got)
	}
}
