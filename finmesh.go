// Package finmesh provides a high-level façade over the advice pipeline: a
// researcher and an advisor agent run as a two-task crew whose final output is
// resolved into a structured answer. Most applications interact with this
// package by:
//  1. Creating a Finmesh via New() with a model and optional collaborators
//  2. Calling GetAdvice (or GetAdviceAsync) with a query and optional user id
//
// All defaults are safe for local development and testing: portfolios are kept
// in memory, searches fail softly, and errors are neither tracked nor logged.
package finmesh

import (
	"context"
	"time"

	"github.com/hupe1980/finmesh/advisor"
	"github.com/hupe1980/finmesh/answer"
	"github.com/hupe1980/finmesh/crew"
	"github.com/hupe1980/finmesh/logging"
	"github.com/hupe1980/finmesh/metrics"
	"github.com/hupe1980/finmesh/model"
	"github.com/hupe1980/finmesh/portfolio"
	"github.com/hupe1980/finmesh/search"
	"github.com/hupe1980/finmesh/tool"
	"github.com/hupe1980/finmesh/tracking"
)

// Options configures the Finmesh instance.
type Options struct {
	// Definitions holds agent personas and task prompts. Defaults to
	// advisor.DefaultDefinitions().
	Definitions advisor.Definitions

	// Portfolios is consulted for the user's portfolio context and exposed to
	// the agents through the portfolio tool. Defaults to an empty in-memory
	// store.
	Portfolios portfolio.Provider

	// Search backs the research tool. Without it research degrades to an
	// empty result.
	Search search.Provider

	// Research bounds each research search. Zero fields keep the
	// tool.Research* defaults.
	Research tool.ResearchOptions

	// MaxConcurrentRuns limits crew runs executing simultaneously. 0 is
	// unlimited.
	MaxConcurrentRuns int

	Logger  logging.Logger
	Tracker tracking.Tracker
	Metrics *metrics.Metrics

	// Now is the clock used for answer timestamps.
	Now func() time.Time
}

// Finmesh aggregates the advice crew and the orchestrator running it.
type Finmesh struct {
	crew         *crew.Crew
	orchestrator *advisor.Orchestrator
}

// New creates a new Finmesh backed by llm. Any unset collaborator is
// initialized with a local default.
func New(llm model.Model, optFns ...func(o *Options)) (*Finmesh, error) {
	opts := Options{
		Definitions: advisor.DefaultDefinitions(),
		Portfolios:  portfolio.NewInMemoryStore(),
		Logger:      logging.NoOpLogger{},
		Tracker:     tracking.Noop{},
		Now:         time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c, err := advisor.NewCrew(llm, advisor.CrewConfig{
		Definitions: opts.Definitions,
		Portfolios:  opts.Portfolios,
		Search:      opts.Search,
		Research:    opts.Research,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	o := advisor.New(c, opts.Portfolios, func(o *advisor.Options) {
		o.Logger = opts.Logger
		o.Tracker = opts.Tracker
		o.Metrics = opts.Metrics
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.Now = opts.Now
	})

	return &Finmesh{crew: c, orchestrator: o}, nil
}

// Crew returns the underlying advice crew.
func (f *Finmesh) Crew() *crew.Crew { return f.crew }

// Orchestrator returns the orchestrator serving advice requests.
func (f *Finmesh) Orchestrator() *advisor.Orchestrator { return f.orchestrator }

// GetAdvice answers query for the optional user. It never fails: pipeline
// errors produce the apology answer.
func (f *Finmesh) GetAdvice(ctx context.Context, query string, userID *int64) answer.Answer {
	return f.orchestrator.GetAdvice(ctx, query, userID)
}

// GetAdviceAsync runs GetAdvice in the background. The returned channel
// yields exactly one answer and is then closed.
func (f *Finmesh) GetAdviceAsync(ctx context.Context, query string, userID *int64) <-chan answer.Answer {
	return f.orchestrator.GetAdviceAsync(ctx, query, userID)
}

// Advise is GetAdvice with the run's outcome details.
func (f *Finmesh) Advise(ctx context.Context, query string, userID *int64) advisor.Result {
	return f.orchestrator.Advise(ctx, query, userID)
}
