package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/config"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/store"
	"github.com/p-blackswan/autodev/internal/task"
	"github.com/p-blackswan/autodev/internal/workspace"
)

func newRequester(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *task.Requester {
	gw := llm.NewOpenAIGateway(cfg.OpenAIKey,
		llm.WithBaseURL(cfg.OpenAIBaseURL),
		llm.WithModel(cfg.OpenAIModel),
		llm.WithTemperature(cfg.OpenAITemperature),
		llm.WithOrganization(cfg.OpenAIOrg),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
		llm.WithLogger(logger),
	)
	return task.NewRequester(gw, task.WithMetrics(m), task.WithLogger(logger))
}

func newWorkspace(cfg *config.Config, logger zerolog.Logger) *workspace.Workspace {
	return workspace.New(workspace.Paths{
		Template:  cfg.TemplatePath,
		Output:    cfg.OutputPath,
		APISchema: cfg.APISchemaPath,
	}, logger)
}

// openStore returns nil when no database is configured.
func openStore(cfg *config.Config, logger zerolog.Logger) (*store.Store, error) {
	if !cfg.StoreEnabled() {
		return nil, nil
	}
	return store.New(cfg.DBPath, logger)
}
