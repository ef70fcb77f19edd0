// Package summary produces the spoken page description: a remote LLM
// summary with a bounded wait, or a deterministic local composition when
// the service is unavailable.
package summary

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"vocalweb-server/internal/dom"
	"vocalweb-server/internal/llm"
)

const (
	// excerptLen bounds the content excerpt in the local fallback.
	excerptLen = 300
	// maxListedElements bounds the enumerated label list in the local fallback.
	maxListedElements = 20
)

// UsageInstructions is the fixed closing line of every local fallback summary.
const UsageInstructions = "To interact, trigger listening and say a command, for example: click followed by an element name."

// Remote is the summarization service; *llm.Client satisfies it.
type Remote interface {
	SummarizePage(ctx context.Context, req llm.SummaryRequest) (string, error)
}

// Service resolves one page into one spoken summary.
type Service struct {
	remote  Remote
	timeout time.Duration
}

// New builds a Service. A nil remote means every summary is composed locally.
func New(remote Remote, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{remote: remote, timeout: timeout}
}

// Summarize never fails: any remote error degrades to the local composition.
func (s *Service) Summarize(ctx context.Context, info dom.PageInfo) string {
	if s.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		text, err := s.remote.SummarizePage(rctx, llm.SummaryRequest{
			PageTitle:   info.Title,
			PageContent: info.Content,
			Elements:    info.Elements,
		})
		if err == nil {
			return text
		}
		log.Printf("summary: remote unavailable, composing local fallback: %v", err)
	}
	return Local(info)
}

// Local composes the deterministic fallback summary: title, content
// excerpt, an enumerated list of up to 20 navigable element labels, and the
// fixed usage instructions.
func Local(info dom.PageInfo) string {
	var b strings.Builder

	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = "an untitled page"
	}
	fmt.Fprintf(&b, "You are on %s.", title)

	if excerpt := Excerpt(info.Content, excerptLen); excerpt != "" {
		fmt.Fprintf(&b, " %s", excerpt)
	}

	labels := elementLabels(info.Elements, maxListedElements)
	if len(labels) > 0 {
		fmt.Fprintf(&b, " The page has %d interactive elements, including: %s.",
			len(info.Elements), strings.Join(labels, ", "))
	} else {
		b.WriteString(" The page has no interactive elements.")
	}

	b.WriteString(" " + UsageInstructions)
	return b.String()
}

// Excerpt collapses whitespace and cuts the text at the last word boundary
// before max runes.
func Excerpt(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

func elementLabels(candidates []dom.Candidate, max int) []string {
	labels := make([]string, 0, max)
	for _, c := range candidates {
		if len(labels) >= max {
			break
		}
		label := c.Label()
		if label == "" {
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

// FlattenHTML reduces an HTML document to readable text for summarization.
// Used by the proxy, where page content arrives as markup rather than the
// flattened text a live extraction produces.
func FlattenHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style, noscript, template").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}
