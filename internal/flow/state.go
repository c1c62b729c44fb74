// Package flow drives the step by step collection of a support ticket.
package flow

import (
	"fmt"

	contextutils "supportapp/internal/utils"
)

// State is a step of the collection flow
type State int

// Flow states in forward order. StateSubmitting is the transient state while the
// single submission request is in flight.
const (
	StateIssue State = iota
	StateContext
	StateAttachments
	StateConsent
	StateSubmitting
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIssue:
		return "issue"
	case StateContext:
		return "context"
	case StateAttachments:
		return "attachments"
	case StateConsent:
		return "consent"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is something that moves the flow
type Event int

// Flow events
const (
	EventSelectCategory Event = iota
	EventSubmitContext
	EventContinueAttachments
	EventGiveConsent
	EventSubmitStarted
	EventSubmitSucceeded
	EventSubmitFailed
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventSelectCategory:
		return "select-category"
	case EventSubmitContext:
		return "submit-context"
	case EventContinueAttachments:
		return "continue-attachments"
	case EventGiveConsent:
		return "give-consent"
	case EventSubmitStarted:
		return "submit-started"
	case EventSubmitSucceeded:
		return "submit-succeeded"
	case EventSubmitFailed:
		return "submit-failed"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

type edge struct {
	from  State
	event Event
}

var transitions = map[edge]State{
	{StateIssue, EventSelectCategory}:            StateContext,
	{StateContext, EventSubmitContext}:           StateAttachments,
	{StateAttachments, EventContinueAttachments}: StateConsent,
	{StateConsent, EventGiveConsent}:             StateConsent,
	{StateConsent, EventSubmitStarted}:           StateSubmitting,
	{StateSubmitting, EventSubmitSucceeded}:      StateSubmitted,
	{StateSubmitting, EventSubmitFailed}:         StateConsent,
}

// Transition returns the state that follows s on e. Reset is accepted from every
// state except StateSubmitting; any other pair not in the forward order is rejected.
func Transition(s State, e Event) (State, error) {
	if e == EventReset {
		if s == StateSubmitting {
			return s, contextutils.ErrSubmissionInFlight
		}
		return StateIssue, nil
	}
	if next, ok := transitions[edge{s, e}]; ok {
		return next, nil
	}
	if s == StateSubmitting {
		return s, contextutils.ErrSubmissionInFlight
	}
	return s, contextutils.NewAppError(
		contextutils.ErrorCodeInvalidTransition,
		contextutils.SeverityWarn,
		fmt.Sprintf("cannot %s while in %s step", e, s),
		"",
	)
}
