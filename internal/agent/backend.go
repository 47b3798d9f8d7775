package agent

import (
	"context"
	"encoding/json"
	"fmt"

	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/factsheet"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/task"
	"github.com/p-blackswan/autodev/internal/tool"
)

// CodeFiles is the file access the backend developer needs.
// *workspace.Workspace satisfies it.
type CodeFiles interface {
	ReadTemplate() (string, error)
	ReadGeneratedOutput() (string, error)
	WriteGeneratedOutput(code string) error
	WriteAPISchema(schema string) error
}

// Verifier checks generated code. *tool.CommandVerifier satisfies it.
type Verifier interface {
	Verify(ctx context.Context, code string) (tool.Verdict, error)
}

// BackendDeveloper writes, improves and fixes the backend webserver code.
type BackendDeveloper struct {
	base
	files       CodeFiles
	verifier    Verifier
	maxBugFixes int
	bugCount    int
	bugErrors   string
}

// NewBackendDeveloper creates a backend developer in Discovery.
func NewBackendDeveloper(req *task.Requester, files CodeFiles, opts ...Option) *BackendDeveloper {
	o := buildOptions(opts)
	return &BackendDeveloper{
		base:        newBase("Develops backend code for webserver and json database", "Backend Developer", req, o),
		files:       files,
		verifier:    o.verifier,
		maxBugFixes: o.maxBugFixes,
	}
}

// BugCount returns how many failed verifications this agent has seen.
func (a *BackendDeveloper) BugCount() int { return a.bugCount }

// Execute runs the control loop until Finished.
func (a *BackendDeveloper) Execute(ctx context.Context, fs *factsheet.FactSheet) error {
	for a.attrs.State != Finished {
		var err error
		switch a.attrs.State {
		case Discovery:
			if err = a.initialCode(ctx, fs); err == nil {
				err = a.transition(Working)
			}
		case Working:
			if a.bugCount == 0 {
				err = a.improvedCode(ctx, fs)
			} else {
				err = a.fixCodeBugs(ctx, fs)
			}
			if err == nil {
				err = a.transition(UnitTesting)
			}
		case UnitTesting:
			err = a.unitTest(ctx, fs)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *BackendDeveloper) initialCode(ctx context.Context, fs *factsheet.FactSheet) error {
	template, err := a.files.ReadTemplate()
	if err != nil {
		return a.fail(err)
	}
	msgContext := fmt.Sprintf("CODE TEMPLATE: %s \n PROJECT_DESCRIPTION: %s \n", template, fs.ProjectDescription)
	code, err := a.request(ctx, msgContext, prompt.Get(prompt.PrintBackendWebserverCode))
	if err != nil {
		return err
	}
	return a.save(fs, code)
}

func (a *BackendDeveloper) improvedCode(ctx context.Context, fs *factsheet.FactSheet) error {
	msgContext := fmt.Sprintf("CODE TEMPLATE: %s \n PROJECT_DESCRIPTION: %s \n", fs.Code(), fs.JSON())
	code, err := a.request(ctx, msgContext, prompt.Get(prompt.PrintImprovedWebserverCode))
	if err != nil {
		return err
	}
	return a.save(fs, code)
}

func (a *BackendDeveloper) fixCodeBugs(ctx context.Context, fs *factsheet.FactSheet) error {
	msgContext := fmt.Sprintf("BROKEN_CODE: %s \n ERROR_BUGS: %s \n THIS FUNCTION ONLY OUTPUTS CODE. JUST OUTPUT THE CODE.",
		fs.Code(), a.bugErrors)
	code, err := a.request(ctx, msgContext, prompt.Get(prompt.PrintFixedCode))
	if err != nil {
		return err
	}
	return a.save(fs, code)
}

func (a *BackendDeveloper) save(fs *factsheet.FactSheet, code string) error {
	if err := a.files.WriteGeneratedOutput(code); err != nil {
		return a.fail(err)
	}
	fs.SetBackendCode(code)
	return nil
}

// unitTest verifies the code when a verifier is configured. Without one the
// phase passes straight to Finished.
func (a *BackendDeveloper) unitTest(ctx context.Context, fs *factsheet.FactSheet) error {
	if a.verifier == nil {
		return a.transition(Finished)
	}

	verdict, err := a.verifier.Verify(ctx, fs.Code())
	if err != nil {
		return a.fail(err)
	}
	if !verdict.Passed {
		a.bugCount++
		a.bugErrors = verdict.Output
		a.logger.Warn().Int("bug_count", a.bugCount).Msg("verification failed")
		if a.bugCount > a.maxBugFixes {
			return a.fail(fmt.Errorf("%w: %d failed verifications", perrors.ErrTooManyBugs, a.bugCount))
		}
		return a.transition(Working)
	}

	a.bugErrors = ""
	routes, err := a.ExtractAPIEndpoints(ctx)
	if err != nil {
		return err
	}
	schema, err := json.MarshalIndent(routes, "", "  ")
	if err != nil {
		return a.fail(err)
	}
	if err := a.files.WriteAPISchema(string(schema)); err != nil {
		return a.fail(err)
	}
	fs.SetAPIEndpointSchema(string(schema))
	return a.transition(Finished)
}

// ExtractAPIEndpoints asks for the REST endpoints of the code on disk.
// It does not change the agent's state.
func (a *BackendDeveloper) ExtractAPIEndpoints(ctx context.Context) ([]factsheet.RouteObject, error) {
	code, err := a.files.ReadGeneratedOutput()
	if err != nil {
		return nil, a.fail(err)
	}
	msgContext := fmt.Sprintf("CODE_INPUT: %s", code)
	return requestDecoded[[]factsheet.RouteObject](ctx, &a.base, msgContext, prompt.Get(prompt.PrintRestAPIEndpoints))
}
