package compliance

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal status transition")

type Event string

const (
	// EventComplete means every required field is present and outputs were computed.
	EventComplete Event = "complete"
	EventPassed   Event = "passed"
	EventFailed   Event = "failed"
	// EventCleared means required data is no longer present.
	EventCleared Event = "cleared"
)

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventComplete: StatusComputed,
		EventCleared:  StatusPending,
	},
	StatusComputed: {
		EventComplete: StatusComputed,
		EventPassed:   StatusPass,
		EventFailed:   StatusFail,
		EventCleared:  StatusPending,
	},
	StatusPass: {
		EventComplete: StatusComputed,
		EventCleared:  StatusPending,
	},
	StatusFail: {
		EventComplete: StatusComputed,
		EventCleared:  StatusPending,
	},
}

// ParseStatus maps a stored status to a Status. An empty value is pending.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusPending, nil
	}
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Transition applies one event to a report status.
func Transition(from Status, ev Event) (Status, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
	}
	return to, nil
}

// Advance moves a report to the status that matches a fresh computation.
// Incomplete data clears it to pending. Complete data passes through computed
// and then to pass or fail when the outcome is decided.
func Advance(from Status, dataComplete bool, outcome Status) (Status, error) {
	if !dataComplete {
		return Transition(from, EventCleared)
	}
	st, err := Transition(from, EventComplete)
	if err != nil {
		return from, err
	}
	switch outcome {
	case StatusPass:
		return Transition(st, EventPassed)
	case StatusFail:
		return Transition(st, EventFailed)
	}
	return st, nil
}
