package dom

import (
	"strings"
	"testing"
)

func TestLabelResolution(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want string
	}{
		{"visible text wins", Candidate{Text: "Sign In", AriaLabel: "Sign in to your account"}, "Sign In"},
		{"aria label fallback", Candidate{AriaLabel: "Close dialog"}, "Close dialog"},
		{"empty when neither", Candidate{Tag: "input"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpokenNameFallsBackToKind(t *testing.T) {
	c := Candidate{Tag: "a", Href: "/about"}
	if got := c.SpokenName(); got != "link" {
		t.Errorf("SpokenName() = %q, want 'link'", got)
	}
	c = Candidate{Tag: "button", Text: "Search"}
	if got := c.SpokenName(); got != "Search" {
		t.Errorf("SpokenName() = %q, want 'Search'", got)
	}
}

func TestTruncateLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short text unchanged", "Submit", "Submit"},
		{"whitespace collapsed", "  Sign \n\t In  ", "Sign In"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateLabel(tt.input); got != tt.want {
				t.Errorf("TruncateLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	long := strings.Repeat("ab", 120)
	got := TruncateLabel(long)
	if len([]rune(got)) != MaxLabelLen {
		t.Errorf("expected truncation to %d runes, got %d", MaxLabelLen, len([]rune(got)))
	}

	// Truncation is rune-safe, not byte-safe.
	unicodeLong := strings.Repeat("é", 150)
	got = TruncateLabel(unicodeLong)
	if len([]rune(got)) != MaxLabelLen {
		t.Errorf("expected %d runes for multibyte input, got %d", MaxLabelLen, len([]rune(got)))
	}
}

func TestIsTextEntry(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"text input", Candidate{Tag: "input", InputType: "text"}, true},
		{"email input", Candidate{Tag: "input", InputType: "email"}, true},
		{"textarea", Candidate{Tag: "textarea"}, true},
		{"submit input", Candidate{Tag: "input", InputType: "submit"}, false},
		{"checkbox", Candidate{Tag: "input", InputType: "checkbox"}, false},
		{"button", Candidate{Tag: "button"}, false},
		{"link", Candidate{Tag: "a", Href: "/x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.IsTextEntry(); got != tt.want {
				t.Errorf("IsTextEntry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNavigableLink(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"absolute url", Candidate{Tag: "a", Href: "https://example.com"}, true},
		{"relative url", Candidate{Tag: "a", Href: "/about"}, true},
		{"javascript pseudo-url", Candidate{Tag: "a", Href: "javascript:void(0)"}, false},
		{"fragment", Candidate{Tag: "a", Href: "#top"}, false},
		{"no href", Candidate{Tag: "a"}, false},
		{"not a link", Candidate{Tag: "button", Href: "https://example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.IsNavigableLink(); got != tt.want {
				t.Errorf("IsNavigableLink() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidatesFromEval(t *testing.T) {
	payload := map[string]interface{}{
		"url":   "https://example.com",
		"title": "Example",
		"count": float64(3),
		"elements": []interface{}{
			map[string]interface{}{
				"index": float64(0), "tag": "a", "text": "Home", "href": "/",
				"classes": []interface{}{"nav", "active"},
			},
			map[string]interface{}{
				"index": float64(1), "tag": "button", "text": "Search",
			},
			map[string]interface{}{
				"index": float64(2), "tag": "input", "text": "Email", "inputType": "email",
			},
		},
	}

	candidates := CandidatesFromEval(payload)
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	// Indices are a contiguous range assigned in traversal order.
	for i, c := range candidates {
		if c.Index != i {
			t.Errorf("candidate %d has index %d", i, c.Index)
		}
	}

	if candidates[0].Tag != "a" || candidates[0].Href != "/" {
		t.Errorf("unexpected first candidate: %+v", candidates[0])
	}
	if len(candidates[0].Classes) != 2 {
		t.Errorf("expected 2 classes, got %v", candidates[0].Classes)
	}
	if candidates[2].InputType != "email" {
		t.Errorf("expected email input type, got %q", candidates[2].InputType)
	}
}

func TestCandidatesFromEvalMalformed(t *testing.T) {
	if got := CandidatesFromEval(nil); got != nil {
		t.Errorf("expected nil for nil payload, got %v", got)
	}
	if got := CandidatesFromEval("not a map"); got != nil {
		t.Errorf("expected nil for non-map payload, got %v", got)
	}

	// Out-of-order in-page indices are re-numbered to the contiguous range.
	payload := map[string]interface{}{
		"elements": []interface{}{
			map[string]interface{}{"index": float64(7), "tag": "button", "text": "A"},
			map[string]interface{}{"index": float64(2), "tag": "button", "text": "B"},
		},
	}
	candidates := CandidatesFromEval(payload)
	if len(candidates) != 2 || candidates[0].Index != 0 || candidates[1].Index != 1 {
		t.Errorf("expected re-numbered indices 0,1, got %+v", candidates)
	}
}
