// Package intake drives the consultation wizard: consent, questionnaire and
// photos, contact details, confirmation.
package intake

import (
	"errors"
	"fmt"
)

// State is a wizard step.
type State string

const (
	StateConsent      State = "consent"
	StateIntake       State = "intake"
	StateContact      State = "contact"
	StateConfirmation State = "confirmation"
)

// Event is a user action that may move the wizard.
type Event string

const (
	EventConsent       Event = "consent"
	EventSubmitIntake  Event = "intake"
	EventBack          Event = "back"
	EventSubmitContact Event = "contact"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State]map[Event]State{
	StateConsent: {EventConsent: StateIntake},
	StateIntake:  {EventSubmitIntake: StateContact},
	StateContact: {EventBack: StateIntake, EventSubmitContact: StateConfirmation},
}

// Next returns the state reached from from on ev. Guards are checked by the
// caller before the move is committed.
func Next(from State, ev Event) (State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}

// Terminal reports whether no event leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
