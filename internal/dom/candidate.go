package dom

import (
	"strings"
)

// MaxLabelLen caps candidate label text; anything longer is truncated.
const MaxLabelLen = 100

// Candidate represents one interactive element observed during an extraction
// pass. Indices are unique within a pass and invalid after the next pass or a
// page navigation.
type Candidate struct {
	Index     int      `json:"index"`
	Tag       string   `json:"tag"`
	Text      string   `json:"text"`
	AriaLabel string   `json:"ariaLabel,omitempty"`
	Role      string   `json:"role,omitempty"`
	InputType string   `json:"inputType,omitempty"`
	Href      string   `json:"href,omitempty"`
	DomID     string   `json:"id,omitempty"`
	Classes   []string `json:"classes,omitempty"`
}

// Label returns the text used for matching and spoken feedback:
// visible text, else aria-label, else empty. Never returns more than
// MaxLabelLen runes.
func (c Candidate) Label() string {
	if c.Text != "" {
		return c.Text
	}
	return c.AriaLabel
}

// SpokenName returns the phrase used in feedback messages, falling back to
// the element kind when no label survived extraction.
func (c Candidate) SpokenName() string {
	if label := c.Label(); label != "" {
		return label
	}
	return KindName(c)
}

// IsTextEntry reports whether the element takes focus for typing rather
// than a click activation.
func (c Candidate) IsTextEntry() bool {
	switch c.Tag {
	case "textarea":
		return true
	case "input":
		switch c.InputType {
		case "submit", "button", "checkbox", "radio", "image", "reset":
			return false
		}
		return true
	}
	return false
}

// IsActivatable reports whether the element's primary interaction is a click.
func (c Candidate) IsActivatable() bool {
	switch c.Tag {
	case "button", "a":
		return true
	case "input":
		switch c.InputType {
		case "submit", "button", "checkbox", "radio", "image", "reset":
			return true
		}
	}
	return c.Role == "button" || c.Role == "link"
}

// IsNavigableLink reports whether clicking the element is expected to load a
// new document (a real href, not a script pseudo-URL or fragment).
func (c Candidate) IsNavigableLink() bool {
	if c.Tag != "a" || c.Href == "" {
		return false
	}
	href := strings.TrimSpace(strings.ToLower(c.Href))
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return false
	}
	return true
}

// KindName maps an element to the word spoken for it.
func KindName(c Candidate) string {
	switch c.Tag {
	case "a":
		return "link"
	case "input":
		if c.IsTextEntry() {
			return "text field"
		}
		return "button"
	case "textarea":
		return "text field"
	case "select":
		return "dropdown"
	case "button":
		return "button"
	}
	if c.Role != "" {
		return c.Role
	}
	return "element"
}

// TruncateLabel collapses whitespace and caps the label at MaxLabelLen runes.
func TruncateLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= MaxLabelLen {
		return s
	}
	return string(runes[:MaxLabelLen])
}

// CandidateFromMap decodes one element record from a page Eval payload.
func CandidateFromMap(m map[string]interface{}) Candidate {
	c := Candidate{
		Index:     intFromMap(m, "index"),
		Tag:       stringFromMap(m, "tag"),
		Text:      TruncateLabel(stringFromMap(m, "text")),
		AriaLabel: TruncateLabel(stringFromMap(m, "ariaLabel")),
		Role:      stringFromMap(m, "role"),
		InputType: stringFromMap(m, "inputType"),
		Href:      stringFromMap(m, "href"),
		DomID:     stringFromMap(m, "id"),
	}
	if raw, ok := m["classes"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				c.Classes = append(c.Classes, s)
			}
		}
	}
	return c
}

// CandidatesFromEval decodes the full extraction payload. The order of the
// returned slice is document traversal order; indices are re-checked to be
// the contiguous range 0..n-1 assigned in-page.
func CandidatesFromEval(v interface{}) []Candidate {
	data, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := data["elements"].([]interface{})
	if !ok {
		return nil
	}

	candidates := make([]Candidate, 0, len(raw))
	for i, e := range raw {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		c := CandidateFromMap(m)
		// Indices must always be the contiguous range 0..n-1 in traversal
		// order, even if the in-page payload was malformed.
		c.Index = i
		candidates = append(candidates, c)
	}
	return candidates
}

func stringFromMap(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intFromMap(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
