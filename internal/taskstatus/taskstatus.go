// Package taskstatus decides which task status changes are legal.
//
// Everything here is pure: no storage, no identity, no clock. The same
// (current, requested) pair always yields the same verdict.
package taskstatus

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a task lifecycle state.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Completed  Status = "completed"
)

var (
	// ErrInvalidStatus is matched by errors whose requested status is not enumerated.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition is matched by errors whose requested status is not reachable.
	ErrInvalidTransition = errors.New("invalid transition")
)

// statuses lists every enumerated status in lifecycle order.
var statuses = []Status{Pending, InProgress, Completed}

var transitions = map[Status][]Status{
	Pending:    {InProgress, Completed},
	InProgress: {Completed},
	Completed:  {},
}

// InvalidStatusError reports a status value outside the enumerated set.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}

func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}

// TransitionError reports an enumerated status that cannot be reached from From.
type TransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *TransitionError) Error() string {
	names := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		names = append(names, string(s))
	}
	return fmt.Sprintf("invalid transition: allowed from %s -> [%s]", e.From, strings.Join(names, ", "))
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Initial is the status every new task starts in.
func Initial() Status {
	return Pending
}

// All returns the enumerated statuses in lifecycle order.
func All() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// Parse converts a raw value into a Status. Matching is exact: "in-progress"
// and "In_Progress" are rejected.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", &InvalidStatusError{Value: raw}
	}
	return s, nil
}

// Allowed returns the statuses reachable in one step from from. Unknown
// statuses have no outgoing transitions.
func Allowed(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Validate returns nil when moving from current to requested is legal, an
// *InvalidStatusError when requested is not enumerated, and a *TransitionError
// when requested is enumerated but not reachable from current.
func Validate(current, requested Status) error {
	if !requested.Valid() {
		return &InvalidStatusError{Value: string(requested)}
	}
	for _, next := range transitions[current] {
		if next == requested {
			return nil
		}
	}
	return &TransitionError{From: current, To: requested, Allowed: Allowed(current)}
}
