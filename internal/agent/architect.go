package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/p-blackswan/autodev/internal/factsheet"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/task"
)

// StatusChecker fetches the status of a URL. *tool.URLChecker satisfies it.
type StatusChecker interface {
	Status(ctx context.Context, url string) (int, error)
}

// SolutionArchitect decides the project scope and the external sites the
// backend will need.
type SolutionArchitect struct {
	base
	checker StatusChecker
}

// NewSolutionArchitect creates a solution architect in Discovery.
func NewSolutionArchitect(req *task.Requester, opts ...Option) *SolutionArchitect {
	o := buildOptions(opts)
	return &SolutionArchitect{
		base:    newBase("Gathers information and design solutions for website development", "Solution Architect", req, o),
		checker: o.checker,
	}
}

// Execute runs the control loop until Finished.
func (a *SolutionArchitect) Execute(ctx context.Context, fs *factsheet.FactSheet) error {
	for a.attrs.State != Finished {
		var err error
		switch a.attrs.State {
		case Discovery:
			err = a.discover(ctx, fs)
		case Working:
			if err = a.determineExternalURLs(ctx, fs); err == nil {
				err = a.transition(UnitTesting)
			}
		case UnitTesting:
			a.dropUnreachableURLs(ctx, fs)
			err = a.transition(Finished)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *SolutionArchitect) discover(ctx context.Context, fs *factsheet.FactSheet) error {
	scope, err := requestDecoded[factsheet.ProjectScope](ctx, &a.base, fs.ProjectDescription, prompt.Get(prompt.PrintProjectScope))
	if err != nil {
		return err
	}
	fs.ProjectScope = &scope
	if scope.IsExternalURLsRequired {
		return a.transition(Working)
	}
	return a.transition(Finished)
}

func (a *SolutionArchitect) determineExternalURLs(ctx context.Context, fs *factsheet.FactSheet) error {
	msgContext := fmt.Sprintf("PROJECT_DESCRIPTION: %s", fs.ProjectDescription)
	urls, err := requestDecoded[[]string](ctx, &a.base, msgContext, prompt.Get(prompt.PrintSiteURLs))
	if err != nil {
		return err
	}
	fs.ExternalURLs = urls
	return nil
}

// dropUnreachableURLs keeps only URLs that answer 200. Check failures are
// not fatal; the URL is just removed.
func (a *SolutionArchitect) dropUnreachableURLs(ctx context.Context, fs *factsheet.FactSheet) {
	if a.checker == nil || len(fs.ExternalURLs) == 0 {
		return
	}
	kept := make([]string, 0, len(fs.ExternalURLs))
	for _, u := range fs.ExternalURLs {
		a.logger.Info().Str("url", u).Msg("testing url endpoint")
		status, err := a.checker.Status(ctx, u)
		if err != nil {
			a.logger.Warn().Err(err).Str("url", u).Msg("url check failed")
			continue
		}
		if status != http.StatusOK {
			a.logger.Warn().Str("url", u).Int("status", status).Msg("dropping url")
			continue
		}
		kept = append(kept, u)
	}
	fs.ExternalURLs = kept
}
