package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/factsheet"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/llm/llmtest"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/task"
	"github.com/p-blackswan/autodev/internal/tool"
	"github.com/p-blackswan/autodev/internal/workspace"
)

const (
	markInitial   = "FUNCTION: print_backend_webserver_code"
	markImproved  = "FUNCTION: print_improved_webserver_code"
	markFixed     = "FUNCTION: print_fixed_code"
	markEndpoints = "FUNCTION: print_rest_api_endpoints"
	markScope     = "FUNCTION: print_project_scope"
	markURLs      = "FUNCTION: print_site_urls"
)

// --- Test mocks ---

type memFiles struct {
	template string
	templErr error
	writes   []string
	schemas  []string
	writeErr error
}

func (m *memFiles) ReadTemplate() (string, error) { return m.template, m.templErr }

func (m *memFiles) ReadGeneratedOutput() (string, error) {
	if len(m.writes) == 0 {
		return "", &perrors.IOError{Op: "read generated output", Path: "main.go", Err: perrors.ErrNotFound}
	}
	return m.writes[len(m.writes)-1], nil
}

func (m *memFiles) WriteGeneratedOutput(code string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, code)
	return nil
}

func (m *memFiles) WriteAPISchema(schema string) error {
	m.schemas = append(m.schemas, schema)
	return nil
}

type scriptedVerifier struct {
	verdicts []tool.Verdict
	calls    int
}

func (v *scriptedVerifier) Verify(_ context.Context, _ string) (tool.Verdict, error) {
	i := v.calls
	if i >= len(v.verdicts) {
		i = len(v.verdicts) - 1
	}
	v.calls++
	return v.verdicts[i], nil
}

type recorder struct {
	transitions []Transition
}

func (r *recorder) OnTransition(t Transition) { r.transitions = append(r.transitions, t) }

func (r *recorder) edges() []string {
	out := make([]string, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.From.String()+">"+t.To.String())
	}
	return out
}

func newRequester(gw llm.Gateway) *task.Requester {
	return task.NewRequester(gw, task.WithLogger(zerolog.Nop()))
}

// --- State machine ---

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Discovery, Working, true},
		{Discovery, Finished, true},
		{Discovery, UnitTesting, false},
		{Working, UnitTesting, true},
		{Working, Discovery, false},
		{Working, Finished, false},
		{UnitTesting, Working, true},
		{UnitTesting, Finished, true},
		{UnitTesting, Discovery, false},
		{Finished, Discovery, false},
		{Finished, Working, false},
		{Finished, Finished, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"_"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "discovery", Discovery.String())
	assert.Equal(t, "unit_testing", UnitTesting.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestTransition_RejectsIllegalEdge(t *testing.T) {
	b := newBase("obj", "Tester", nil, buildOptions(nil))
	b.attrs.State = Finished

	err := b.transition(Working)
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrInvalidInput)
	assert.Equal(t, Finished, b.attrs.State)
}

// --- Backend developer ---

func TestBackendDeveloper_ReferencePath(t *testing.T) {
	gw := llmtest.New().
		On(markInitial, llmtest.Text("code v1")).
		On(markImproved, llmtest.Text("code v2"))
	files := &memFiles{template: "package main"}
	rec := &recorder{}
	a := NewBackendDeveloper(newRequester(gw), files, WithObserver(rec))

	fs := factsheet.New("build a CRUD API for notes")
	require.NoError(t, a.Execute(context.Background(), fs))

	assert.Equal(t, Finished, a.Attributes().State)
	assert.Equal(t, []string{"code v1", "code v2"}, files.writes, "backend code is written once per phase")
	assert.Equal(t, "code v2", fs.Code())
	assert.Nil(t, fs.APIEndpointSchema)
	assert.Equal(t, []string{"discovery>working", "working>unit_testing", "unit_testing>finished"}, rec.edges())
	assert.Equal(t, 2, gw.CallCount())
	assert.Zero(t, gw.CountContaining(markFixed))
}

func TestBackendDeveloper_PromptsCarryNoAssistantRole(t *testing.T) {
	gw := llmtest.New().Otherwise(llmtest.Text("code"))
	a := NewBackendDeveloper(newRequester(gw), &memFiles{template: "package main"})
	require.NoError(t, a.Execute(context.Background(), factsheet.New("notes")))

	for _, call := range gw.Calls() {
		require.Len(t, call, 1)
		assert.Contains(t, []llm.Role{llm.RoleSystem, llm.RoleUser}, call[0].Role)
	}
	assert.Equal(t, llm.RoleAssistant, a.Attributes().Memory[1].Role)
}

func TestBackendDeveloper_DiscoveryPersistsCode(t *testing.T) {
	gw := llmtest.New().
		On(markInitial, llmtest.Text("package main // initial")).
		On(markImproved, llmtest.Text("package main // improved"))
	files := &memFiles{template: "package main"}
	a := NewBackendDeveloper(newRequester(gw), files)

	fs := factsheet.New("notes")
	require.Nil(t, fs.BackendCode)
	require.NoError(t, a.Execute(context.Background(), fs))

	require.NotEmpty(t, files.writes)
	assert.Equal(t, "package main // initial", files.writes[0])

	calls := gw.Calls()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Contains(t, calls[0][0].Content, "CODE TEMPLATE: package main")
	assert.Contains(t, calls[0][0].Content, "PROJECT_DESCRIPTION: notes")
	assert.Contains(t, calls[1][0].Content, "package main // initial", "improvement sees the prior code")
}

func TestBackendDeveloper_WritesWorkspaceOutput(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.Paths{
		Template:  filepath.Join(dir, "code_template.go"),
		Output:    filepath.Join(dir, "out", "main.go"),
		APISchema: filepath.Join(dir, "out", "api_schema.json"),
	}
	require.NoError(t, os.WriteFile(paths.Template, []byte("package main"), 0o644))
	ws := workspace.New(paths, zerolog.Nop())

	gw := llmtest.New().
		On(markInitial, llmtest.Text("initial")).
		On(markImproved, llmtest.Text("improved"))
	a := NewBackendDeveloper(newRequester(gw), ws)

	fs := factsheet.New("notes")
	require.NoError(t, a.Execute(context.Background(), fs))

	got, err := os.ReadFile(paths.Output)
	require.NoError(t, err)
	assert.Equal(t, fs.Code(), string(got))
}

func TestBackendDeveloper_MemoryRecordsExchanges(t *testing.T) {
	gw := llmtest.New().Otherwise(llmtest.Text("code"))
	a := NewBackendDeveloper(newRequester(gw), &memFiles{})

	require.NoError(t, a.Execute(context.Background(), factsheet.New("notes")))

	attrs := a.Attributes()
	require.Len(t, attrs.Memory, 4)
	assert.Equal(t, llm.RoleSystem, attrs.Memory[0].Role)
	assert.Equal(t, llm.RoleAssistant, attrs.Memory[1].Role)
	assert.Equal(t, "Backend Developer", attrs.Position)

	attrs.Memory[0].Content = "mutated"
	assert.NotEqual(t, "mutated", a.Attributes().Memory[0].Content)
}

func TestBackendDeveloper_BugEdgeReentersWorking(t *testing.T) {
	gw := llmtest.New().
		On(markInitial, llmtest.Text("v1")).
		On(markImproved, llmtest.Text("v2")).
		On(markFixed, llmtest.Text("v3")).
		On(markEndpoints, llmtest.Text(`[{"route":"/notes","method":"get","is_route_dynamic":"false","request_body":"None","response":[]}]`))
	files := &memFiles{}
	ver := &scriptedVerifier{verdicts: []tool.Verdict{
		{Passed: false, Output: "undefined: handler"},
		{Passed: true},
	}}
	rec := &recorder{}
	a := NewBackendDeveloper(newRequester(gw), files, WithVerifier(ver), WithObserver(rec))

	fs := factsheet.New("notes")
	require.NoError(t, a.Execute(context.Background(), fs))

	assert.Equal(t, Finished, a.Attributes().State)
	assert.Equal(t, 1, a.BugCount())
	assert.Equal(t, []string{"v1", "v2", "v3"}, files.writes)
	assert.Equal(t, "v3", fs.Code())
	assert.Equal(t, []string{
		"discovery>working",
		"working>unit_testing",
		"unit_testing>working",
		"working>unit_testing",
		"unit_testing>finished",
	}, rec.edges())

	assert.Equal(t, 1, gw.CountContaining(markImproved))
	assert.Equal(t, 1, gw.CountContaining(markFixed))
	for _, call := range gw.Calls() {
		if len(call) > 0 && strings.Contains(call[0].Content, markFixed) {
			assert.Contains(t, call[0].Content, "ERROR_BUGS: undefined: handler")
		}
	}

	require.NotNil(t, fs.APIEndpointSchema)
	assert.Contains(t, *fs.APIEndpointSchema, `"route": "/notes"`)
	require.Len(t, files.schemas, 1)
	assert.Equal(t, *fs.APIEndpointSchema, files.schemas[0])
}

func TestBackendDeveloper_BugBudgetExhausted(t *testing.T) {
	gw := llmtest.New().Otherwise(llmtest.Text("still broken"))
	ver := &scriptedVerifier{verdicts: []tool.Verdict{{Passed: false, Output: "boom"}}}
	a := NewBackendDeveloper(newRequester(gw), &memFiles{}, WithVerifier(ver), WithMaxBugFixes(1))

	err := a.Execute(context.Background(), factsheet.New("notes"))
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrTooManyBugs)

	var agentErr *perrors.AgentExecutionError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, "Backend Developer", agentErr.Agent)
	assert.Equal(t, "unit_testing", agentErr.Phase)
	assert.Equal(t, 2, a.BugCount())
	assert.Equal(t, 2, ver.calls)
	assert.NotEqual(t, Finished, a.Attributes().State)
}

func TestBackendDeveloper_GatewayFailsTwice(t *testing.T) {
	gw := llmtest.New().Otherwise(
		llmtest.Fail(perrors.NewTransportError(500, "down", nil)),
		llmtest.Fail(perrors.NewTransportError(500, "still down", nil)),
	)
	files := &memFiles{}
	a := NewBackendDeveloper(newRequester(gw), files)

	fs := factsheet.New("notes")
	err := a.Execute(context.Background(), fs)
	require.Error(t, err)
	assert.True(t, perrors.IsFatal(err))

	var fatal *perrors.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 2, fatal.Attempts)
	assert.Equal(t, 2, gw.CallCount())
	assert.Empty(t, files.writes)
	assert.Nil(t, fs.BackendCode)
	assert.Equal(t, Discovery, a.Attributes().State)
}

func TestBackendDeveloper_TemplateMissing(t *testing.T) {
	gw := llmtest.New().Otherwise(llmtest.Text("code"))
	files := &memFiles{templErr: &perrors.IOError{Op: "read template", Path: "t.go", Err: perrors.ErrNotFound}}
	a := NewBackendDeveloper(newRequester(gw), files)

	err := a.Execute(context.Background(), factsheet.New("notes"))
	require.Error(t, err)

	var ioErr *perrors.IOError
	assert.ErrorAs(t, err, &ioErr)
	assert.Zero(t, gw.CallCount(), "io errors are not retried and stop before any request")
}

func TestBackendDeveloper_ExtractAPIEndpoints(t *testing.T) {
	gw := llmtest.New().On(markEndpoints,
		llmtest.Text(`[{"route":"/items/:id","method":"delete","is_route_dynamic":"true","request_body":"None","response":"None"}]`))
	files := &memFiles{writes: []string{"package main"}}
	a := NewBackendDeveloper(newRequester(gw), files)

	routes, err := a.ExtractAPIEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "/items/:id", routes[0].Route)
	assert.Equal(t, "delete", routes[0].Method)
	assert.Equal(t, Discovery, a.Attributes().State)
	assert.Contains(t, gw.Calls()[0][0].Content, "CODE_INPUT: package main")
}

func TestBackendDeveloper_ExtractAPIEndpointsBadJSON(t *testing.T) {
	gw := llmtest.New().On(markEndpoints, llmtest.Text("here are your endpoints!"))
	a := NewBackendDeveloper(newRequester(gw), &memFiles{writes: []string{"package main"}})

	_, err := a.ExtractAPIEndpoints(context.Background())
	require.Error(t, err)

	var schemaErr *perrors.SchemaDecodeError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 1, gw.CallCount(), "decode failures are not retried")
}

func TestBackendDeveloper_BadJSONSharesTaskDecodePath(t *testing.T) {
	m := metrics.New()
	gw := llmtest.New().On(markEndpoints, llmtest.Text("not json"))
	r := task.NewRequester(gw, task.WithMetrics(m), task.WithLogger(zerolog.Nop()))
	a := NewBackendDeveloper(r, &memFiles{writes: []string{"package main"}})

	_, err := a.ExtractAPIEndpoints(context.Background())
	require.Error(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("task", "schema_decode")), 0)

	mem := a.Attributes().Memory
	require.Len(t, mem, 2)
	assert.Equal(t, llm.RoleAssistant, mem[1].Role)
	assert.Equal(t, "not json", mem[1].Content)
}

func TestBackendDeveloper_ZeroBugBudget(t *testing.T) {
	gw := llmtest.New().Otherwise(llmtest.Text("broken"))
	ver := &scriptedVerifier{verdicts: []tool.Verdict{{Passed: false, Output: "boom"}}}
	a := NewBackendDeveloper(newRequester(gw), &memFiles{}, WithVerifier(ver), WithMaxBugFixes(0))

	err := a.Execute(context.Background(), factsheet.New("notes"))
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrTooManyBugs)
	assert.Equal(t, 1, ver.calls)
	assert.Equal(t, 1, a.BugCount())
	assert.Zero(t, gw.CountContaining(markFixed))
}

func TestWithMaxBugFixes(t *testing.T) {
	assert.Equal(t, DefaultMaxBugFixes, buildOptions(nil).maxBugFixes)
	assert.Equal(t, 0, buildOptions([]Option{WithMaxBugFixes(0)}).maxBugFixes)
	assert.Equal(t, 5, buildOptions([]Option{WithMaxBugFixes(5)}).maxBugFixes)
	assert.Equal(t, DefaultMaxBugFixes, buildOptions([]Option{WithMaxBugFixes(-1)}).maxBugFixes)
}
