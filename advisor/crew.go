package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/finmesh/agent"
	"github.com/hupe1980/finmesh/crew"
	"github.com/hupe1980/finmesh/logging"
	"github.com/hupe1980/finmesh/metrics"
	"github.com/hupe1980/finmesh/model"
	"github.com/hupe1980/finmesh/portfolio"
	"github.com/hupe1980/finmesh/search"
	"github.com/hupe1980/finmesh/tool"
)

// ErrNoSearchProvider is reported by the research tool when no search
// backend is configured. The tool degrades to an empty research result.
var ErrNoSearchProvider = errors.New("no search provider configured")

// CrewConfig holds the collaborators of the advice crew.
type CrewConfig struct {
	Definitions Definitions
	Portfolios  portfolio.Provider
	Search      search.Provider
	// Research bounds the research tool's searches; zero fields keep the
	// tool defaults.
	Research    tool.ResearchOptions
	Logger      logging.Logger
	Metrics     *metrics.Metrics
}

// NewCrew builds the two-task advice crew: the researcher (research and
// portfolio tools) runs the research task, then the advisor (portfolio tool)
// runs the advice task with the research output as context.
func NewCrew(llm model.Model, cfg CrewConfig) (*crew.Crew, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}

	if cfg.Portfolios == nil {
		cfg.Portfolios = portfolio.NewInMemoryStore()
	}

	if cfg.Search == nil {
		cfg.Search = search.ProviderFunc(func(context.Context, search.Query) ([]search.Result, error) {
			return nil, ErrNoSearchProvider
		})
	}

	defs := cfg.Definitions

	var toolObserver tool.Observer
	var crewObserver crew.Observer
	if cfg.Metrics != nil {
		llm = metrics.InstrumentModel(llm, cfg.Metrics)
		toolObserver = cfg.Metrics
		crewObserver = cfg.Metrics
	}

	researcher, err := agent.New(defs.Researcher.Role, llm, func(o *agent.Options) {
		o.Goal = defs.Researcher.Goal
		o.Backstory = defs.Researcher.Backstory
		o.MaxIterations = defs.Researcher.MaxIterations
		o.Tools = []tool.Tool{tool.NewResearchTool(cfg.Search, researchOptions(cfg.Research)), tool.NewPortfolioTool(cfg.Portfolios)}
		o.ToolObserver = toolObserver
	})
	if err != nil {
		return nil, fmt.Errorf("researcher: %w", err)
	}

	advisor, err := agent.New(defs.Advisor.Role, llm, func(o *agent.Options) {
		o.Goal = defs.Advisor.Goal
		o.Backstory = defs.Advisor.Backstory
		o.MaxIterations = defs.Advisor.MaxIterations
		o.Tools = []tool.Tool{tool.NewPortfolioTool(cfg.Portfolios)}
		o.ToolObserver = toolObserver
	})
	if err != nil {
		return nil, fmt.Errorf("advisor: %w", err)
	}

	research := &crew.Task{
		Name:           ResearchTaskName,
		Description:    defs.Research.Description,
		ExpectedOutput: defs.Research.ExpectedOutput,
		Agent:          researcher,
	}

	advice := &crew.Task{
		Name:           AdviceTaskName,
		Description:    defs.Advice.Description,
		ExpectedOutput: defs.Advice.ExpectedOutput,
		Agent:          advisor,
		Context:        []*crew.Task{research},
	}

	return crew.New([]*crew.Task{research, advice}, func(o *crew.Options) {
		o.Logger = cfg.Logger
		o.Observer = crewObserver
	})
}

func researchOptions(r tool.ResearchOptions) func(o *tool.ResearchOptions) {
	return func(o *tool.ResearchOptions) {
		if r.Limit > 0 {
			o.Limit = r.Limit
		}
		if r.Lang != "" {
			o.Lang = r.Lang
		}
		if r.Timeout > 0 {
			o.Timeout = r.Timeout
		}
	}
}
