package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/task"
)

// DefaultMaxBugFixes bounds how often UnitTesting may send the backend
// developer back to Working.
const DefaultMaxBugFixes = 2

type options struct {
	observer    Observer
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	verifier    Verifier
	checker     StatusChecker
	maxBugFixes int
}

// Option configures an agent.
type Option func(*options)

// WithObserver sets the transition observer.
func WithObserver(o Observer) Option {
	return func(op *options) { op.observer = o }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(op *options) { op.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(op *options) { op.logger = l }
}

// WithVerifier enables real test execution in UnitTesting.
func WithVerifier(v Verifier) Option {
	return func(op *options) { op.verifier = v }
}

// WithStatusChecker sets how the architect checks external URLs.
func WithStatusChecker(c StatusChecker) Option {
	return func(op *options) { op.checker = c }
}

// WithMaxBugFixes sets how many failed verifications may be sent back to
// Working. 0 allows none; a negative value keeps DefaultMaxBugFixes.
func WithMaxBugFixes(n int) Option {
	return func(op *options) {
		if n >= 0 {
			op.maxBugFixes = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), maxBugFixes: DefaultMaxBugFixes}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// base holds the attributes and plumbing every role shares.
type base struct {
	attrs     Attributes
	requester *task.Requester
	observer  Observer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func newBase(objective, position string, req *task.Requester, o options) base {
	return base{
		attrs: Attributes{
			Objective: objective,
			Position:  position,
			State:     Discovery,
		},
		requester: req,
		observer:  o.observer,
		metrics:   o.metrics,
		logger:    o.logger.With().Str("component", "agent").Str("agent", position).Logger(),
	}
}

// Attributes returns a copy; callers cannot mutate the agent's memory.
func (b *base) Attributes() Attributes {
	a := b.attrs
	a.Memory = append([]llm.Message(nil), b.attrs.Memory...)
	return a
}

func (b *base) transition(to State) error {
	from := b.attrs.State
	if !CanTransition(from, to) {
		return &perrors.AgentExecutionError{
			Agent: b.attrs.Position,
			Phase: from.String(),
			Err:   fmt.Errorf("%w: illegal transition %s -> %s", perrors.ErrInvalidInput, from, to),
		}
	}
	b.attrs.State = to
	b.metrics.RecordTransition(b.attrs.Position, from.String(), to.String())
	if b.observer != nil {
		b.observer.OnTransition(Transition{Agent: b.attrs.Position, From: from, To: to, At: time.Now()})
	}
	return nil
}

// request runs one shaped request and appends the exchange to memory.
func (b *base) request(ctx context.Context, msgContext string, shaper prompt.Shaper) (string, error) {
	b.attrs.Memory = append(b.attrs.Memory, prompt.Extend(shaper, msgContext))
	reply, err := b.requester.Request(ctx, msgContext, b.attrs.Position, shaper.Operation(), shaper)
	if err != nil {
		return "", b.fail(err)
	}
	b.attrs.Memory = append(b.attrs.Memory, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// requestDecoded is request followed by task.DecodeReply into T.
// The raw reply stays in memory even when it does not decode.
func requestDecoded[T any](ctx context.Context, b *base, msgContext string, shaper prompt.Shaper) (T, error) {
	reply, err := b.request(ctx, msgContext, shaper)
	if err != nil {
		var out T
		return out, err
	}
	out, err := task.DecodeReply[T](b.requester, reply, b.attrs.Position, shaper.Operation())
	if err != nil {
		return out, b.fail(err)
	}
	return out, nil
}

// fail wraps err with the agent and phase it happened in.
func (b *base) fail(err error) error {
	b.metrics.RecordError("agent", perrors.Kind(err))
	return &perrors.AgentExecutionError{
		Agent: b.attrs.Position,
		Phase: b.attrs.State.String(),
		Err:   err,
	}
}
