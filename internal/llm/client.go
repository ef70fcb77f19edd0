// Package llm talks to an OpenAI-compatible chat-completions API for the two
// remote calls the pipeline makes: ranking candidates against a command and
// summarizing a page. Both callers treat any error here as "service
// unavailable" and run their local fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"vocalweb-server/internal/config"
	"vocalweb-server/internal/dom"
)

// NoMatch is returned by RankElements when the model decides no candidate
// fits the command.
const NoMatch = -1

// ErrNoAPIKey means the client was built without credentials; callers fall
// back to local heuristics the same way they do for transport failures.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// Client wraps the chat-completions API behind the two pipeline calls.
type Client struct {
	api             openai.Client
	model           string
	maxContentChars int
	hasKey          bool
}

// NewClient builds a client from config. A missing API key does not fail
// construction; calls return ErrNoAPIKey so the fallback paths run.
func NewClient(cfg config.LLMConfig) *Client {
	key := cfg.APIKey()
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:             openai.NewClient(opts...),
		model:           cfg.Model,
		maxContentChars: cfg.GetMaxContentChars(),
		hasKey:          key != "",
	}
}

const rankSystemPrompt = `You match a spoken browser command to one interactive page element.
You are given the command and a numbered list of elements.
Reply with ONLY the number of the single best-matching element.
If no element matches the command, reply with ONLY the word NONE.`

// RankElements asks the model to pick the candidate the command refers to.
// It returns the winning index, NoMatch for an explicit "none" verdict, or
// an error for transport failures and unusable replies.
func (c *Client) RankElements(ctx context.Context, command string, candidates []dom.Candidate) (int, error) {
	if !c.hasKey {
		return NoMatch, ErrNoAPIKey
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Command: %q\n\nElements:\n", command)
	for _, cand := range candidates {
		fmt.Fprintf(&b, "%d: %s\n", cand.Index, describeCandidate(cand))
	}

	reply, err := c.complete(ctx, rankSystemPrompt, b.String())
	if err != nil {
		return NoMatch, err
	}
	return parseRankReply(reply)
}

const summarySystemPrompt = `You describe web pages for a user navigating by voice.
Summarize what the page is about and what the user can do on it in 2-4 short
sentences suitable for being read aloud. Mention the most useful links and
buttons by name. Do not use markdown or lists.`

// SummaryRequest carries the page material sent for summarization.
type SummaryRequest struct {
	PageTitle   string
	PageContent string
	Elements    []dom.Candidate
}

// SummarizePage asks the model for a spoken-friendly page summary.
func (c *Client) SummarizePage(ctx context.Context, req SummaryRequest) (string, error) {
	if !c.hasKey {
		return "", ErrNoAPIKey
	}

	content := req.PageContent
	if len(content) > c.maxContentChars {
		content = content[:c.maxContentChars]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nContent:\n%s\n\nInteractive elements:\n", req.PageTitle, content)
	for i, cand := range req.Elements {
		if i >= 20 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", describeCandidate(cand))
	}

	reply, err := c.complete(ctx, summarySystemPrompt, b.String())
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("llm: empty summary reply")
	}
	return reply, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func describeCandidate(c dom.Candidate) string {
	kind := dom.KindName(c)
	label := c.Label()
	if label == "" {
		return kind
	}
	return fmt.Sprintf("%s %q", kind, label)
}

// parseRankReply extracts the model's verdict: a candidate index, NoMatch
// for an explicit refusal, or an error for anything unusable.
func parseRankReply(reply string) (int, error) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), ".,!\"'`"))
	if s == "" {
		return NoMatch, errors.New("llm: empty rank reply")
	}

	upper := strings.ToUpper(s)
	if upper == "NONE" || upper == "NO MATCH" {
		return NoMatch, nil
	}

	// Tolerate prefixes like "Element 3" or "3: Search" from chatty models.
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	})
	for _, f := range fields {
		if f == "" {
			continue
		}
		idx, err := strconv.Atoi(f)
		if err == nil {
			return idx, nil
		}
	}

	return NoMatch, fmt.Errorf("llm: non-numeric rank reply %q", reply)
}
