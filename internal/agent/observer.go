package agent

import (
	"time"

	"github.com/rs/zerolog"
)

// Transition is emitted every time an agent changes state.
type Transition struct {
	Agent string
	From  State
	To    State
	At    time.Time
}

// Observer receives state transitions. Implementations must not block.
type Observer interface {
	OnTransition(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// MultiObserver fans a transition out to every member.
type MultiObserver []Observer

func (m MultiObserver) OnTransition(t Transition) {
	for _, o := range m {
		if o != nil {
			o.OnTransition(t)
		}
	}
}

// LogObserver writes one structured log event per transition.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "agent").Logger()}
}

func (o *LogObserver) OnTransition(t Transition) {
	o.logger.Info().
		Str("agent", t.Agent).
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Msg("state transition")
}
