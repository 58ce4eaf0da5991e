package pipeline

import (
	"fmt"

	"go.uber.org/zap"
)

// State is the lifecycle position of one case file.
type State int

const (
	Pending State = iota
	Authenticating
	Searching
	Extracting
	Uploading
	Recording
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticating:
		return "authenticating"
	case Searching:
		return "searching"
	case Extracting:
		return "extracting"
	case Uploading:
		return "uploading"
	case Recording:
		return "recording"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// next holds the forward edge of every happy-path state.
var next = map[State]State{
	Pending:        Authenticating,
	Authenticating: Searching,
	Searching:      Extracting,
	Extracting:     Uploading,
	Uploading:      Recording,
	Recording:      Closed,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	switch {
	case from == Closed:
		return false
	case to == Failed:
		return from != Failed
	case from == Failed:
		return to == Closed
	default:
		return next[from] == to
	}
}

// machine tracks the state of one case file. Illegal transitions are
// programming errors: they are logged and ignored.
type machine struct {
	state    State
	logger   *zap.Logger
	onChange func(from, to State)
}

func newMachine(logger *zap.Logger, onChange func(from, to State)) *machine {
	return &machine{state: Pending, logger: logger, onChange: onChange}
}

func (m *machine) to(s State) bool {
	if !CanTransition(m.state, s) {
		m.logger.Error("Illegal state transition", zap.Stringer("from", m.state), zap.Stringer("to", s))
		return false
	}
	from := m.state
	m.state = s
	if m.onChange != nil {
		m.onChange(from, s)
	}
	return true
}

// fail moves to Failed unless the case already failed or closed.
func (m *machine) fail() {
	if m.state != Failed && m.state != Closed {
		m.to(Failed)
	}
}

// close moves to Closed, passing through Failed when the happy path was not finished.
func (m *machine) close() {
	switch m.state {
	case Closed:
	case Recording, Failed:
		m.to(Closed)
	default:
		m.to(Failed)
		m.to(Closed)
	}
}
