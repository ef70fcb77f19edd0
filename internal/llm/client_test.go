package llm

import (
	"context"
	"testing"

	"vocalweb-server/internal/config"
	"vocalweb-server/internal/dom"
)

func TestParseRankReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    int
		wantErr bool
	}{
		{"bare number", "3", 3, false},
		{"number with whitespace", "  1 \n", 1, false},
		{"number with period", "2.", 2, false},
		{"chatty prefix", "Element 4", 4, false},
		{"index with label", "0: Search", 0, false},
		{"none verdict", "NONE", NoMatch, false},
		{"none lowercase", "none", NoMatch, false},
		{"no match phrase", "No match", NoMatch, false},
		{"empty reply", "", NoMatch, true},
		{"prose without number", "the search button", NoMatch, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRankReply(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRankReply(%q) error = %v, wantErr = %v", tt.reply, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("parseRankReply(%q) = %d, want %d", tt.reply, got, tt.want)
			}
		})
	}
}

func TestDescribeCandidate(t *testing.T) {
	tests := []struct {
		name string
		c    dom.Candidate
		want string
	}{
		{"labeled button", dom.Candidate{Tag: "button", Text: "Search"}, `button "Search"`},
		{"labeled link", dom.Candidate{Tag: "a", Href: "/", Text: "Home"}, `link "Home"`},
		{"unlabeled input", dom.Candidate{Tag: "input", InputType: "text"}, "text field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeCandidate(tt.c); got != tt.want {
				t.Errorf("describeCandidate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientWithoutKeyFailsFast(t *testing.T) {
	cfg := config.LLMConfig{Model: "gpt-4o-mini", APIKeyEnv: "VOCALWEB_TEST_MISSING_KEY"}
	c := NewClient(cfg)

	if _, err := c.RankElements(context.Background(), "click search", []dom.Candidate{{Tag: "button", Text: "Search"}}); err == nil {
		t.Error("expected ErrNoAPIKey from RankElements")
	}
	if _, err := c.SummarizePage(context.Background(), SummaryRequest{PageTitle: "x"}); err == nil {
		t.Error("expected ErrNoAPIKey from SummarizePage")
	}
}
