package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/autodev/internal/errors"
)

const (
	openAIAPIBase      = "https://api.openai.com/v1"
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.1
	maxErrorBody       = 4 * 1024
)

// OpenAIGateway implements Gateway using the chat completions API.
type OpenAIGateway struct {
	apiKey       string
	organization string
	baseURL      string
	model        string
	temperature  float64
	client       *http.Client
	logger       zerolog.Logger
}

// OpenAIOption configures the gateway.
type OpenAIOption func(*OpenAIGateway)

func WithModel(model string) OpenAIOption {
	return func(g *OpenAIGateway) { g.model = model }
}

func WithTemperature(t float64) OpenAIOption {
	return func(g *OpenAIGateway) { g.temperature = t }
}

func WithOrganization(org string) OpenAIOption {
	return func(g *OpenAIGateway) { g.organization = org }
}

func WithBaseURL(u string) OpenAIOption {
	return func(g *OpenAIGateway) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(g *OpenAIGateway) { g.client = c }
}

func WithLogger(l zerolog.Logger) OpenAIOption {
	return func(g *OpenAIGateway) { g.logger = l }
}

// NewOpenAIGateway constructs a gateway for the given API key.
func NewOpenAIGateway(apiKey string, opts ...OpenAIOption) *OpenAIGateway {
	g := &OpenAIGateway{
		apiKey:      apiKey,
		baseURL:     openAIAPIBase,
		model:       defaultModel,
		temperature: defaultTemperature,
		client:      &http.Client{Timeout: 120 * time.Second},
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.With().Str("component", "llm").Logger()
	return g
}

// ModelID returns the model requested on every call.
func (g *OpenAIGateway) ModelID() string { return g.model }

// ---- wire types ----

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request and returns the first choice.
func (g *OpenAIGateway) Complete(ctx context.Context, msgs []Message) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", perrors.NewTransportError(0, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", perrors.NewTransportError(0, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if g.organization != "" {
		req.Header.Set("OpenAI-Organization", g.organization)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			err = fmt.Errorf("%w: %w", perrors.ErrTimeout, err)
		}
		return "", perrors.NewTransportError(0, "http", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", perrors.NewTransportError(resp.StatusCode, "read body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", perrors.NewTransportError(resp.StatusCode, apiErrorMessage(raw), statusCause(resp.StatusCode))
	}

	var cr chatCompletionResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", perrors.NewDecodeError("unmarshal response", err)
	}
	if cr.Error != nil {
		return "", perrors.NewDecodeError(fmt.Sprintf("api error %s: %s", cr.Error.Type, cr.Error.Message), nil)
	}
	if len(cr.Choices) == 0 {
		return "", perrors.NewDecodeError("response has no choices", nil)
	}

	ev := g.logger.Debug().Str("model", g.model).Int("messages", len(msgs))
	if cr.Usage != nil {
		ev = ev.Int("in_tokens", cr.Usage.PromptTokens).Int("out_tokens", cr.Usage.CompletionTokens)
	}
	ev.Msg("chat completion")

	return cr.Choices[0].Message.Content, nil
}

func apiErrorMessage(raw []byte) string {
	var cr chatCompletionResponse
	if err := json.Unmarshal(raw, &cr); err == nil && cr.Error != nil {
		return cr.Error.Message
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return strings.TrimSpace(string(raw))
}

// statusCause maps an HTTP status to the sentinel callers can test for.
// The gateway error stays a transport error either way.
func statusCause(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return perrors.ErrAuthFailure
	case code == http.StatusNotFound:
		return perrors.ErrNotFound
	case code == http.StatusTooManyRequests:
		return perrors.ErrRateLimit
	case code >= 500:
		return perrors.ErrUnavailable
	default:
		return nil
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
