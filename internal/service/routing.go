package service

import (
	"fmt"

	"github.com/Strob0t/ClaimDesk/internal/domain"
)

// State is a step of Eloise's routing state machine.
type State int

const (
	StateAwaitInput State = iota
	StateDecideAction
	StateRelay
	StateDelegate
	StateDirectReply
	StateDone
)

var stateNames = [...]string{
	StateAwaitInput:   "AWAIT_INPUT",
	StateDecideAction: "DECIDE_ACTION",
	StateRelay:        "RELAY",
	StateDelegate:     "DELEGATE",
	StateDirectReply:  "DIRECT_REPLY",
	StateDone:         "DONE",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown state %q", domain.ErrValidation, b)
}

// Event drives a transition.
type Event int

const (
	EventInput Event = iota
	EventPendingDecision
	EventDelegationChosen
	EventNoAction
	EventFailure
	EventReplied
)

var eventNames = [...]string{
	EventInput:            "input",
	EventPendingDecision:  "pending_decision",
	EventDelegationChosen: "delegation_chosen",
	EventNoAction:         "no_action",
	EventFailure:          "failure",
	EventReplied:          "replied",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

var transitions = map[State]map[Event]State{
	StateAwaitInput: {
		EventInput: StateDecideAction,
	},
	StateDecideAction: {
		EventPendingDecision:  StateRelay,
		EventDelegationChosen: StateDelegate,
		EventNoAction:         StateDirectReply,
		EventFailure:          StateDone,
	},
	StateRelay:       {EventReplied: StateDone},
	StateDelegate:    {EventReplied: StateDone},
	StateDirectReply: {EventReplied: StateDone},
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: no transition from %s on %s", domain.ErrValidation, s, e)
}

// route walks the machine and remembers the visited states.
type route struct {
	path []State
}

func newRoute() *route {
	return &route{path: []State{StateAwaitInput}}
}

func (r *route) current() State {
	return r.path[len(r.path)-1]
}

// fire applies e. An invalid event is a programming error.
func (r *route) fire(e Event) {
	to, err := Next(r.current(), e)
	if err != nil {
		panic(err)
	}
	r.path = append(r.path, to)
}

// branch is the state chosen after DECIDE_ACTION, or DONE on failure.
func (r *route) branch() State {
	for _, s := range r.path {
		switch s {
		case StateRelay, StateDelegate, StateDirectReply:
			return s
		}
	}
	return StateDone
}
