package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vocalweb-server/internal/browser"
	"vocalweb-server/internal/session"
	"vocalweb-server/internal/settings"
	"vocalweb-server/internal/speech"
)

type ListSessionsTool struct {
	sessions *browser.SessionManager
}

func (t *ListSessionsTool) Name() string { return "list-sessions" }
func (t *ListSessionsTool) Description() string {
	return `List all active browser sessions.

Returns session IDs needed by the other tools, with each session's
current URL and title.`
}
func (t *ListSessionsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListSessionsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"sessions": t.sessions.List()}, nil
}

type CreateSessionTool struct {
	sessions *browser.SessionManager
}

func (t *CreateSessionTool) Name() string { return "create-session" }
func (t *CreateSessionTool) Description() string {
	return `Open a new browser session, optionally navigating to a URL.

Returns: {session: {id, url, title}} - use the ID with the other tools.`
}
func (t *CreateSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Optional URL to navigate after opening the session",
			},
		},
	}
}
func (t *CreateSessionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	if url == "" {
		url = "about:blank"
	}

	sess, err := t.sessions.CreateSession(ctx, url)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"session": sess}, nil
}

type AttachSessionTool struct {
	sessions *browser.SessionManager
}

func (t *AttachSessionTool) Name() string { return "attach-session" }
func (t *AttachSessionTool) Description() string {
	return `Attach to an existing browser tab by its DevTools target ID, making
it controllable as a session.`
}
func (t *AttachSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "DevTools target ID of the tab to attach",
			},
		},
		"required": []string{"target_id"},
	}
}
func (t *AttachSessionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	targetID := getStringArg(args, "target_id")
	if targetID == "" {
		return nil, errors.New("target_id is required")
	}

	sess, err := t.sessions.Attach(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"session": sess}, nil
}

type ExtractElementsTool struct {
	pages session.Browser
}

func (t *ExtractElementsTool) Name() string { return "extract-elements" }
func (t *ExtractElementsTool) Description() string {
	return `Run an extraction pass over the session's page and return the visible
interactive elements with their command indices.

Indices are only valid until the next extraction or navigation.`
}
func (t *ExtractElementsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session to extract from",
			},
		},
		"required": []string{"session_id"},
	}
}
func (t *ExtractElementsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}

	candidates, err := t.pages.Extract(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"count":    len(candidates),
		"elements": candidates,
	}, nil
}

type MatchCommandTool struct {
	pages   session.Browser
	matcher session.Matcher
}

func (t *MatchCommandTool) Name() string { return "match-command" }
func (t *MatchCommandTool) Description() string {
	return `Resolve a command phrase against the session's current interactive
elements without acting on the result.

Set interact=true to also click or focus the matched element.`
}
func (t *MatchCommandTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session whose page is searched",
			},
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Command phrase to resolve",
			},
			"interact": map[string]interface{}{
				"type":        "boolean",
				"description": "Click or focus the match (default: false)",
			},
		},
		"required": []string{"session_id", "command"},
	}
}
func (t *MatchCommandTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	command := getStringArg(args, "command")
	if sessionID == "" || command == "" {
		return nil, errors.New("session_id and command are required")
	}

	candidates, err := t.pages.Extract(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, source := t.matcher.Match(ctx, command, candidates)
	payload := map[string]interface{}{
		"found":   result.Found,
		"message": result.Message,
		"source":  string(source),
	}
	if result.Candidate != nil {
		payload["element"] = result.Candidate
	}

	if result.Found && getBoolArg(args, "interact", false) {
		outcome := t.pages.Interact(ctx, sessionID, *result.Candidate, command)
		payload["action"] = string(outcome.Action)
		payload["performed"] = outcome.Performed
		payload["message"] = outcome.Message
	}
	return payload, nil
}

type SummarizePageTool struct {
	pages     session.Browser
	summaries session.Summarizer
}

func (t *SummarizePageTool) Name() string { return "summarize-page" }
func (t *SummarizePageTool) Description() string {
	return `Produce the spoken-style description of the session's current page:
what it is and what can be done on it.`
}
func (t *SummarizePageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session whose page is summarized",
			},
		},
		"required": []string{"session_id"},
	}
}
func (t *SummarizePageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}

	info, err := t.pages.PageInfo(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"summary": t.summaries.Summarize(ctx, info),
		"title":   info.Title,
		"url":     info.URL,
	}, nil
}

// submitWindow bounds how long an injected transcript waits for the cycle
// to arm capture.
const submitWindow = 3 * time.Second

type VoiceCommandTool struct {
	orchestrator *session.Orchestrator
	capturer     *speech.ChannelCapturer
}

func (t *VoiceCommandTool) Name() string { return "voice-command" }
func (t *VoiceCommandTool) Description() string {
	return `Run one full command cycle with an injected transcript instead of
microphone input: extract, match, interact, and speak the outcome.`
}
func (t *VoiceCommandTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session the command targets",
			},
			"transcript": map[string]interface{}{
				"type":        "string",
				"description": "Command text as if it had been spoken",
			},
		},
		"required": []string{"session_id", "transcript"},
	}
}
func (t *VoiceCommandTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	transcript := getStringArg(args, "transcript")
	if sessionID == "" || transcript == "" {
		return nil, errors.New("session_id and transcript are required")
	}

	done := make(chan error, 1)
	go func() {
		done <- t.orchestrator.RunCycle(ctx, sessionID)
	}()

	// The cycle speaks its prompt before arming capture; keep offering the
	// transcript until the capturer accepts it or the cycle ends first.
	deadline := time.After(submitWindow)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	submitted := false
	for !submitted {
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
			// The cycle finished without listening (empty page, disabled).
			return map[string]interface{}{"completed": true, "heard": false}, nil
		case <-deadline:
			t.orchestrator.Cancel()
			<-done
			return nil, fmt.Errorf("cycle never started listening for %s", sessionID)
		case <-ticker.C:
			submitted = t.capturer.Submit(transcript)
		}
	}

	if err := <-done; err != nil {
		return nil, err
	}
	return map[string]interface{}{"completed": true, "heard": true}, nil
}

type GetSettingsTool struct {
	store *settings.Store
}

func (t *GetSettingsTool) Name() string { return "get-settings" }
func (t *GetSettingsTool) Description() string {
	return `Read the current voice preferences shared with the extension popup.`
}
func (t *GetSettingsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetSettingsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return t.store.Get(), nil
}

type SetSettingTool struct {
	store *settings.Store
}

func (t *SetSettingTool) Name() string { return "set-setting" }
func (t *SetSettingTool) Description() string {
	return `Change one voice preference by key. Known keys: enabled, speechRate,
speechPitch, speechVolume, language, highlightColor, autoSummary,
backendAddress.`
}
func (t *SetSettingTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Preference key to change",
			},
			"value": map[string]interface{}{
				"description": "New value; type must fit the key",
			},
		},
		"required": []string{"key", "value"},
	}
}
func (t *SetSettingTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	key := getStringArg(args, "key")
	if key == "" {
		return nil, errors.New("key is required")
	}
	value, ok := args["value"]
	if !ok {
		return nil, errors.New("value is required")
	}

	var applyErr error
	updated, err := t.store.Update(func(v *settings.Settings) {
		applyErr = settings.ApplyKey(v, key, value)
	})
	if err != nil {
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	return updated, nil
}
