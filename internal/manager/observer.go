package manager

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/agent"
	"github.com/p-blackswan/autodev/internal/store"
)

// storeObserver persists agent transitions for a run. Write failures are
// logged and never interrupt the agent.
type storeObserver struct {
	store  *store.Store
	runID  string
	logger zerolog.Logger
}

func (o *storeObserver) OnTransition(t agent.Transition) {
	err := o.store.RecordTransition(context.Background(), store.Transition{
		RunID:     o.runID,
		Agent:     t.Agent,
		From:      t.From.String(),
		To:        t.To.String(),
		CreatedAt: t.At.UnixMilli(),
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("agent", t.Agent).Msg("failed to record transition")
	}
}
