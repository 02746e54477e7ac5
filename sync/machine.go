// Package sync drives the reconciliation cycle between the local replica
// and the remote ledger repository: fetch the remote partitions, merge them
// with the local records, suspend on true conflicts, then push the result
// back as one atomic commit.
package sync

import "fmt"

// this file contains the cycle's state machine as pure data: states, events
// and a transition table. The orchestrator is the only runner; it never
// moves between states except through transition, and all side effects
// (callbacks, I/O) live in the runner, never here.

// State is the orchestrator's position in the sync cycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StateConflict // suspended, waiting for conflict resolutions
	StatePushing
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateConflict:
		return "conflict"
	case StatePushing:
		return "pushing"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event moves the machine from one state to the next.
type Event int

const (
	EventStart          Event = iota // a cycle begins
	EventFetched                     // remote and local sets are loaded
	EventConflictsFound              // the merge reported true conflicts
	EventResolved                    // resolutions were supplied, merge again
	EventMerged                      // the merge fully resolved
	EventPushed                      // push done (or nothing to push) and state persisted
	EventFailed                      // the running step failed
	EventAborted                     // the cycle was cancelled before any write
	EventDone                        // terminal outcome reported, back to rest
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventFetched:
		return "fetched"
	case EventConflictsFound:
		return "conflicts-found"
	case EventResolved:
		return "resolved"
	case EventMerged:
		return "merged"
	case EventPushed:
		return "pushed"
	case EventFailed:
		return "failed"
	case EventAborted:
		return "aborted"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// transitions is the full map of legal moves. Pushing has no abort edge:
// once a push is issued the cycle always runs to a terminal outcome.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateFetching,
	},
	StateFetching: {
		EventFetched: StateMerging,
		EventFailed:  StateError,
		EventAborted: StateIdle,
	},
	StateMerging: {
		EventConflictsFound: StateConflict,
		EventMerged:         StatePushing,
		EventFailed:         StateError,
		EventAborted:        StateIdle,
	},
	StateConflict: {
		EventResolved: StateMerging,
		EventFailed:   StateError,
		EventAborted:  StateIdle,
	},
	StatePushing: {
		EventPushed: StateSuccess,
		EventFailed: StateError,
	},
	StateSuccess: {
		EventDone: StateIdle,
	},
	StateError: {
		EventDone: StateIdle,
	},
}

// transition returns the state reached from s on e, or an error naming both
// when the move is illegal.
func transition(s State, e Event) (State, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("illegal transition from %q on %q", s, e)
	}
	return next, nil
}
