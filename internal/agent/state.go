// Package agent implements the role agents that drive a project through
// Discovery, Working, UnitTesting and Finished.
package agent

import (
	"context"
	"fmt"

	"github.com/p-blackswan/autodev/internal/factsheet"
	"github.com/p-blackswan/autodev/internal/llm"
)

// State is an agent's position in its control loop.
type State int

const (
	Discovery State = iota
	Working
	UnitTesting
	Finished
)

func (s State) String() string {
	switch s {
	case Discovery:
		return "discovery"
	case Working:
		return "working"
	case UnitTesting:
		return "unit_testing"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CanTransition reports whether from → to is a legal edge. States only
// advance, except UnitTesting → Working when bugs were found.
// Discovery may jump straight to Finished for agents with nothing to do.
func CanTransition(from, to State) bool {
	switch from {
	case Discovery:
		return to == Working || to == Finished
	case Working:
		return to == UnitTesting
	case UnitTesting:
		return to == Working || to == Finished
	default:
		return false
	}
}

// Attributes is the observable identity and progress of an agent.
type Attributes struct {
	Objective string
	Position  string
	State     State
	Memory    []llm.Message
}

// Agent is the capability set the manager sequences.
type Agent interface {
	Attributes() Attributes
	Execute(ctx context.Context, fs *factsheet.FactSheet) error
}
