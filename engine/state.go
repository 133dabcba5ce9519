package engine

import "fmt"

// State is the Session life cycle state.
type State int

const (
	StateInit State = iota
	StateLoading
	StateEvaluating
	StateDraining
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateLoading:
		return "Loading"
	case StateEvaluating:
		return "Evaluating"
	case StateDraining:
		return "Draining"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Done reports whether s is a terminal state.
func (s State) Done() bool { return s == StateCompleted || s == StateFailed }
