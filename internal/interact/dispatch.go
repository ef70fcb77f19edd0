package interact

import (
	"fmt"
	"strings"

	"vocalweb-server/internal/dom"
)

// Action is the primary interaction chosen for a resolved element.
type Action string

const (
	ActionClick Action = "click"
	ActionFocus Action = "focus"
)

// Plan derives the action from command text and element kind, and reports
// whether the one-shot navigation flag must be armed before acting.
//
// Explicit click intent wins, then activatable kinds, then text-entry
// kinds take focus; anything left defaults to a click.
func Plan(command string, c dom.Candidate) (Action, bool) {
	action := ActionFocus
	switch {
	case strings.Contains(strings.ToLower(command), "click"):
		action = ActionClick
	case c.IsActivatable():
		action = ActionClick
	case c.IsTextEntry():
		action = ActionFocus
	default:
		action = ActionClick
	}

	// Only a real cross-document navigation arms the auto-announce flag.
	armFlag := action == ActionClick && c.IsNavigableLink()
	return action, armFlag
}

// Outcome reports one executor invocation in a form ready to be spoken.
type Outcome struct {
	Action    Action
	Performed bool
	Message   string
}

func clickedMessage(c dom.Candidate) string {
	return fmt.Sprintf("Clicked %s.", c.SpokenName())
}

func focusedMessage(c dom.Candidate) string {
	return fmt.Sprintf("Focused %s. You can start typing.", c.SpokenName())
}

func staleMessage(c dom.Candidate) string {
	return fmt.Sprintf("I found %s, but could not interact with it.", c.SpokenName())
}
