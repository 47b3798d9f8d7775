// Package task issues shaped requests through the completion gateway with a
// one-retry policy and optionally decodes the reply as JSON.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/retry"
)

// Requester issues shaped requests on behalf of agents.
type Requester struct {
	gateway llm.Gateway
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures a Requester.
type Option func(*Requester)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Requester) { r.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Requester) { r.logger = l }
}

// NewRequester creates a Requester backed by gw.
func NewRequester(gw llm.Gateway, opts ...Option) *Requester {
	r := &Requester{gateway: gw, logger: zerolog.Nop()}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With().Str("component", "task").Logger()
	return r
}

// Request extends msgContext with the shaper, calls the gateway, and retries
// exactly once if the call fails. A second failure is returned as a
// *errors.FatalError; callers must abort on it.
func (r *Requester) Request(ctx context.Context, msgContext, agentPosition, agentOperation string, shaper prompt.Shaper) (string, error) {
	msg := prompt.Extend(shaper, msgContext)

	r.logger.Info().
		Str("agent", agentPosition).
		Str("operation", agentOperation).
		Str("shaper", string(shaper.Name())).
		Msgf("%s: %s", agentPosition, agentOperation)

	cfg := retry.Once()
	cfg.OnRetry = func(attempt int, err error) {
		r.metrics.RecordRetry(agentPosition)
		r.logger.Warn().Err(err).
			Str("agent", agentPosition).
			Str("operation", agentOperation).
			Int("attempt", attempt).
			Msg("completion failed, retrying once")
	}

	var (
		reply    string
		attempts int
	)
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		out, err := r.gateway.Complete(ctx, []llm.Message{msg})
		if err != nil {
			return perrors.AsGatewayError(err)
		}
		reply = out
		return nil
	})
	if err != nil {
		r.metrics.RecordLLMRequest(agentPosition, "fatal")
		r.metrics.RecordError("task", perrors.Kind(err))
		r.logger.Error().Err(err).
			Str("agent", agentPosition).
			Str("operation", agentOperation).
			Int("attempts", attempts).
			Msg("completion failed")
		return "", &perrors.FatalError{
			Agent:     agentPosition,
			Operation: agentOperation,
			Attempts:  attempts,
			Err:       err,
		}
	}

	r.metrics.RecordLLMRequest(agentPosition, "ok")
	return reply, nil
}

// RequestDecoded runs Request and decodes the reply as JSON into T.
// A reply that does not decode is not re-requested.
func RequestDecoded[T any](ctx context.Context, r *Requester, msgContext, agentPosition, agentOperation string, shaper prompt.Shaper) (T, error) {
	text, err := r.Request(ctx, msgContext, agentPosition, agentOperation, shaper)
	if err != nil {
		var out T
		return out, err
	}
	return DecodeReply[T](r, text, agentPosition, agentOperation)
}

// DecodeReply decodes a reply already returned by Request into T,
// counting and logging a schema mismatch against the requesting agent.
func DecodeReply[T any](r *Requester, text, agentPosition, agentOperation string) (T, error) {
	var out T
	if err := Decode(text, &out); err != nil {
		r.metrics.RecordError("task", "schema_decode")
		r.logger.Error().Err(err).
			Str("agent", agentPosition).
			Str("operation", agentOperation).
			Msg("llm output did not match schema")
		return out, err
	}
	return out, nil
}

// Decode parses text as JSON into v, wrapping failures as *errors.SchemaDecodeError.
func Decode(text string, v any) error {
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), v); err != nil {
		return &perrors.SchemaDecodeError{
			Target: fmt.Sprintf("%T", v),
			Text:   text,
			Err:    err,
		}
	}
	return nil
}
