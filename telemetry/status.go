package telemetry

import (
	"fmt"

	"vecScope/mem"
)

type State int

const (
	Searching State = iota
	ModuleWaiting
	ResolvingChain
	Linked
	Error
)

func (s State) String() string {
	switch s {
	case Searching:
		return "Searching"
	case ModuleWaiting:
		return "ModuleWaiting"
	case ResolvingChain:
		return "ResolvingChain"
	case Linked:
		return "Linked"
	case Error:
		return "Error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is what the sampler last observed. It is replaced as a whole,
// never mutated after publication.
type Status struct {
	State   State
	Fault   mem.FaultKind
	Detail  string
	PID     int32
	Address uint64
}

func (s Status) String() string {
	switch s.State {
	case Linked:
		return fmt.Sprintf("Linked: 0x%X", s.Address)
	case Searching:
		return "Searching for process..."
	case ModuleWaiting:
		return fmt.Sprintf("Waiting for %s...", s.Detail)
	}
	if s.Detail != "" {
		return fmt.Sprintf("%s: %s", s.State, s.Detail)
	}
	return s.State.String()
}
