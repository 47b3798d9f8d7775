// Package llmtest provides a scripted completion gateway for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/p-blackswan/autodev/internal/llm"
)

// Reply is one scripted gateway outcome.
type Reply struct {
	Text string
	Err  error
}

// Text is a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is a failed reply.
func Fail(err error) Reply { return Reply{Err: err} }

type route struct {
	marker  string
	replies []Reply
	next    int
}

// Gateway answers each call with the next reply scripted for the first
// route whose marker appears in the last message. Once a route's replies
// are used up its final reply repeats.
type Gateway struct {
	mu       sync.Mutex
	routes   []*route
	fallback *route
	calls    [][]llm.Message
}

// New returns an empty scripted gateway.
func New() *Gateway {
	return &Gateway{}
}

// On scripts replies for calls whose last message contains marker.
func (g *Gateway) On(marker string, replies ...Reply) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, &route{marker: marker, replies: replies})
	return g
}

// Otherwise scripts replies for calls no route matches.
func (g *Gateway) Otherwise(replies ...Reply) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallback = &route{replies: replies}
	return g
}

// Complete implements llm.Gateway.
func (g *Gateway) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	copied := make([]llm.Message, len(msgs))
	copy(copied, msgs)
	g.calls = append(g.calls, copied)

	var content string
	if len(msgs) > 0 {
		content = msgs[len(msgs)-1].Content
	}

	r := g.fallback
	for _, candidate := range g.routes {
		if strings.Contains(content, candidate.marker) {
			r = candidate
			break
		}
	}
	if r == nil || len(r.replies) == 0 {
		return "", fmt.Errorf("llmtest: no reply scripted for %q", truncate(content, 80))
	}

	idx := r.next
	if idx >= len(r.replies) {
		idx = len(r.replies) - 1
	} else {
		r.next++
	}
	rep := r.replies[idx]
	return rep.Text, rep.Err
}

// Calls returns every message list the gateway received.
func (g *Gateway) Calls() [][]llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][]llm.Message, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount returns the number of Complete calls.
func (g *Gateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// CountContaining returns how many calls had marker in their last message.
func (g *Gateway) CountContaining(marker string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, msgs := range g.calls {
		if len(msgs) > 0 && strings.Contains(msgs[len(msgs)-1].Content, marker) {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
