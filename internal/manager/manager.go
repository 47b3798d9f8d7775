// Package manager turns a user request into a fact sheet and runs the role
// agents against it one after another.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/agent"
	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/factsheet"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/store"
	"github.com/p-blackswan/autodev/internal/task"
)

const (
	position  = "Project Manager"
	objective = "Manage agents who are building an excellent website for the user"
)

// Deps are the collaborators a Manager and its agents share.
// Requester and Files are required; everything else is optional.
// MaxBugFixes only matters with a Verifier; a negative value uses
// agent.DefaultMaxBugFixes.
type Deps struct {
	Requester   *task.Requester
	Files       agent.CodeFiles
	Verifier    agent.Verifier
	Checker     agent.StatusChecker
	MaxBugFixes int
	Store       *store.Store
	Metrics     *metrics.Metrics
	Observer    agent.Observer
	Logger      zerolog.Logger
}

// Manager owns the fact sheet for one run and the ordered agent list.
type Manager struct {
	deps      Deps
	attrs     agent.Attributes
	factSheet *factsheet.FactSheet
	agents    []agent.Agent
	runID     string
	logger    zerolog.Logger
}

// New distills userRequest into a project description and seeds the fact
// sheet with it. The agent list starts empty.
func New(ctx context.Context, userRequest string, deps Deps) (*Manager, error) {
	if deps.Requester == nil {
		return nil, fmt.Errorf("%w: manager requires a requester", perrors.ErrInvalidInput)
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("%w: manager requires code files", perrors.ErrInvalidInput)
	}

	m := &Manager{
		deps: deps,
		attrs: agent.Attributes{
			Objective: objective,
			Position:  position,
			State:     agent.Discovery,
		},
		logger: deps.Logger.With().Str("component", "manager").Logger(),
	}

	if deps.Store != nil {
		run, err := deps.Store.CreateRun(ctx, userRequest)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		m.runID = run.ID
		m.logger = m.logger.With().Str("run_id", run.ID).Logger()
	}

	shaper := prompt.Get(prompt.ConvertUserInputToGoal)
	m.attrs.Memory = append(m.attrs.Memory, prompt.Extend(shaper, userRequest))
	description, err := deps.Requester.Request(ctx, userRequest, position, shaper.Operation(), shaper)
	if err != nil {
		err = &perrors.AgentExecutionError{Agent: position, Phase: agent.Discovery.String(), Err: err}
		m.finishRun(ctx, err)
		return nil, err
	}
	m.attrs.Memory = append(m.attrs.Memory, llm.Message{Role: llm.RoleAssistant, Content: description})

	m.factSheet = factsheet.New(description)
	m.logger.Info().Str("project_description", description).Msg("project defined")
	return m, nil
}

// FactSheet returns the live fact sheet.
func (m *Manager) FactSheet() *factsheet.FactSheet { return m.factSheet }

// Attributes returns the manager's own attributes.
func (m *Manager) Attributes() agent.Attributes { return m.attrs }

// RunID returns the stored run ID, or "" without a store.
func (m *Manager) RunID() string { return m.runID }

// Agents returns the agents in execution order.
func (m *Manager) Agents() []agent.Agent {
	return append([]agent.Agent(nil), m.agents...)
}

// AddAgent appends an agent to the execution order.
func (m *Manager) AddAgent(a agent.Agent) {
	m.agents = append(m.agents, a)
}

// CreateAgents appends the roles every project needs: the solution
// architect, then the backend developer.
func (m *Manager) CreateAgents() {
	opts := []agent.Option{
		agent.WithObserver(m.observer()),
		agent.WithMetrics(m.deps.Metrics),
		agent.WithLogger(m.deps.Logger),
		agent.WithMaxBugFixes(m.deps.MaxBugFixes),
	}
	if m.deps.Checker != nil {
		opts = append(opts, agent.WithStatusChecker(m.deps.Checker))
	}
	if m.deps.Verifier != nil {
		opts = append(opts, agent.WithVerifier(m.deps.Verifier))
	}

	m.AddAgent(agent.NewSolutionArchitect(m.deps.Requester, opts...))
	m.AddAgent(agent.NewBackendDeveloper(m.deps.Requester, m.deps.Files, opts...))
}

// ExecuteProject runs every agent in order against the fact sheet. The first
// agent error aborts the run; later agents never start and no fact sheet is
// returned.
func (m *Manager) ExecuteProject(ctx context.Context) (*factsheet.FactSheet, error) {
	if len(m.agents) == 0 {
		m.CreateAgents()
	}
	m.attrs.State = agent.Working

	for _, a := range m.agents {
		start := time.Now()
		err := a.Execute(ctx, m.factSheet)
		attrs := a.Attributes()
		m.deps.Metrics.ObserveAgentDuration(attrs.Position, time.Since(start).Seconds())

		m.logger.Info().
			Str("agent", attrs.Position).
			Str("objective", attrs.Objective).
			Str("state", attrs.State.String()).
			Int("memory", len(attrs.Memory)).
			Dur("duration", time.Since(start)).
			Msg("agent finished")

		if err != nil {
			var agentErr *perrors.AgentExecutionError
			if !errors.As(err, &agentErr) {
				err = &perrors.AgentExecutionError{Agent: attrs.Position, Phase: attrs.State.String(), Err: err}
			}
			m.deps.Metrics.RecordError("manager", perrors.Kind(err))
			m.logger.Error().Err(err).Str("agent", attrs.Position).Msg("agent failed, aborting project")
			m.finishRun(ctx, err)
			return nil, err
		}

		m.snapshot(ctx, attrs.Position)
	}

	m.attrs.State = agent.Finished
	m.finishRun(ctx, nil)
	return m.factSheet, nil
}

func (m *Manager) observer() agent.Observer {
	obs := agent.MultiObserver{agent.NewLogObserver(m.deps.Logger)}
	if m.deps.Store != nil && m.runID != "" {
		obs = append(obs, &storeObserver{store: m.deps.Store, runID: m.runID, logger: m.logger})
	}
	if m.deps.Observer != nil {
		obs = append(obs, m.deps.Observer)
	}
	return obs
}

func (m *Manager) snapshot(ctx context.Context, agentName string) {
	if m.deps.Store == nil || m.runID == "" {
		return
	}
	if err := m.deps.Store.SaveSnapshot(ctx, m.runID, agentName, m.factSheet.Clone()); err != nil {
		m.logger.Warn().Err(err).Str("agent", agentName).Msg("failed to save fact sheet snapshot")
	}
}

func (m *Manager) finishRun(ctx context.Context, runErr error) {
	status := store.RunSucceeded
	if runErr != nil {
		status = store.RunFailed
	}
	m.deps.Metrics.RecordRun(status)

	if m.deps.Store == nil || m.runID == "" {
		return
	}
	if err := m.deps.Store.FinishRun(ctx, m.runID, status, runErr); err != nil {
		m.logger.Warn().Err(err).Msg("failed to finish run")
	}
}
