package advisor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hupe1980/finmesh/answer"
	"github.com/hupe1980/finmesh/crew"
	"github.com/hupe1980/finmesh/logging"
	"github.com/hupe1980/finmesh/metrics"
	"github.com/hupe1980/finmesh/portfolio"
	"github.com/hupe1980/finmesh/tracking"
)

// Runner executes the advice crew.
type Runner interface {
	Kickoff(ctx context.Context, inputs map[string]any) (*crew.Run, error)
}

// Options configures an Orchestrator.
type Options struct {
	Logger   logging.Logger
	Tracker  tracking.Tracker
	Metrics  *metrics.Metrics
	Resolver *answer.Resolver
	// MaxConcurrentRuns bounds crew runs in flight; 0 is unlimited.
	MaxConcurrentRuns int
	Now               func() time.Time
}

// Result is the detailed outcome of one advice request.
type Result struct {
	Answer        answer.Answer
	Outcome       answer.Outcome
	RunID         string
	PortfolioUsed bool
}

// Orchestrator runs advice requests. It holds no per-request state and is
// safe for concurrent use.
type Orchestrator struct {
	runner     Runner
	portfolios portfolio.Provider
	resolver   *answer.Resolver
	logger     logging.Logger
	tracker    tracking.Tracker
	metrics    *metrics.Metrics
	sem        chan struct{}
	now        func() time.Time
}

// New creates an Orchestrator. portfolios may be nil, in which case no
// portfolio context is ever loaded.
func New(runner Runner, portfolios portfolio.Provider, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Tracker: tracking.Noop{},
		Now:     time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Resolver == nil {
		opts.Resolver = answer.NewResolver(func(o *answer.Options) { o.Now = opts.Now })
	}

	o := &Orchestrator{
		runner:     runner,
		portfolios: portfolios,
		resolver:   opts.Resolver,
		logger:     opts.Logger,
		tracker:    opts.Tracker,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}

	if opts.MaxConcurrentRuns > 0 {
		o.sem = make(chan struct{}, opts.MaxConcurrentRuns)
	}

	return o
}

// GetAdvice answers query, optionally grounded in the portfolio of userID.
// It never fails; see Advise for the outcome details.
func (o *Orchestrator) GetAdvice(ctx context.Context, query string, userID *int64) answer.Answer {
	return o.Advise(ctx, query, userID).Answer
}

// GetAdviceAsync runs GetAdvice in its own goroutine. The returned channel
// receives exactly one answer.
func (o *Orchestrator) GetAdviceAsync(ctx context.Context, query string, userID *int64) <-chan answer.Answer {
	ch := make(chan answer.Answer, 1)

	go func() {
		defer close(ch)
		ch <- o.GetAdvice(ctx, query, userID)
	}()

	return ch
}

// Advise is GetAdvice with the outcome classification, run id and whether
// portfolio context was used.
func (o *Orchestrator) Advise(ctx context.Context, query string, userID *int64) Result {
	start := time.Now()

	id, hasUser := validUserID(userID)
	if hasUser {
		ctx = tracking.WithUserID(ctx, strconv.FormatInt(id, 10))
	}

	portfolioData := o.loadPortfolio(ctx, userID)
	inputs := Bindings(query, userID, portfolioData)

	res := o.run(ctx, inputs)
	res.PortfolioUsed = portfolioData != ""

	o.logger.Info(
		"advisor.advice.complete",
		"outcome", string(res.Outcome),
		"run_id", res.RunID,
		"has_user", hasUser,
		"portfolio_used", res.PortfolioUsed,
		"sources", len(res.Answer.Sources),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if o.metrics != nil {
		o.metrics.ObserveAdvice(res.Outcome, time.Since(start))
	}

	return res
}

func (o *Orchestrator) run(ctx context.Context, inputs map[string]any) Result {
	if err := o.acquire(ctx); err != nil {
		o.logger.Warn("advisor.run.not_started", "error", err.Error())
		o.capture(ctx, err, string(answer.OutcomePipelineFailed))
		return Result{Answer: answer.Apology(o.now()), Outcome: answer.OutcomePipelineFailed}
	}
	defer o.release()

	run, err := o.runner.Kickoff(ctx, inputs)

	var runID string
	if run != nil {
		runID = run.ID
	}

	if err != nil {
		o.logger.Error("advisor.run.failed", "run_id", runID, "error", err.Error())
		o.capture(ctx, err, string(answer.OutcomePipelineFailed))
		return Result{Answer: answer.Apology(o.now()), Outcome: answer.OutcomePipelineFailed, RunID: runID}
	}

	resolution := o.resolver.Resolve(run.Final)

	if resolution.Outcome == answer.OutcomeParseFailed {
		o.logger.Warn(
			"advisor.resolve.failed",
			"run_id", runID,
			"error", resolution.Err.Error(),
			"raw_length", len(run.Final),
		)
		o.capture(ctx, resolution.Err, string(answer.OutcomeParseFailed))
	} else {
		o.logger.Debug("advisor.resolve.complete", "run_id", runID, "stage", string(resolution.Stage))
	}

	return Result{Answer: resolution.Answer, Outcome: resolution.Outcome, RunID: runID}
}

// loadPortfolio returns the portfolio context binding, or "" when the user
// is unknown or the lookup fails for any reason.
func (o *Orchestrator) loadPortfolio(ctx context.Context, userID *int64) string {
	id, ok := validUserID(userID)
	if !ok || o.portfolios == nil {
		return ""
	}

	skip := func(reason string, err error) string {
		if o.metrics != nil {
			o.metrics.ObservePortfolioSkipped(reason)
		}
		o.logger.Warn("advisor.portfolio.skipped", "user_id", id, "reason", reason, "error", err.Error())
		return ""
	}

	p, err := o.portfolios.GetUserPortfolio(ctx, id)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			o.note(ctx, "portfolio not found, advising without portfolio context", tracking.LevelInfo,
				map[string]string{"outcome": "portfolio_skipped", "reason": "not_found"})
			return skip("not_found", err)
		}
		o.capture(ctx, err, "portfolio_skipped")
		return skip("error", err)
	}

	data, err := p.Context().JSON()
	if err != nil {
		return skip("error", err)
	}

	return data
}

func (o *Orchestrator) acquire(ctx context.Context) error {
	if o.metrics != nil {
		o.metrics.RunStarted()
	}

	if o.sem == nil {
		return nil
	}

	select {
	case o.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		if o.metrics != nil {
			o.metrics.RunFinished()
		}
		return ctx.Err()
	}
}

func (o *Orchestrator) release() {
	if o.sem != nil {
		<-o.sem
	}
	if o.metrics != nil {
		o.metrics.RunFinished()
	}
}

// note reports a degraded but expected path that is not an error.
func (o *Orchestrator) note(ctx context.Context, message string, level tracking.Level, tags map[string]string) {
	if err := o.tracker.CaptureMessage(ctx, message, level, tags); err != nil {
		o.logger.Debug("advisor.tracker.failed", "error", err.Error())
	}
}

func (o *Orchestrator) capture(ctx context.Context, err error, outcome string) {
	if err := o.tracker.CaptureError(ctx, err, map[string]string{"outcome": outcome}); err != nil {
		o.logger.Debug("advisor.tracker.failed", "error", err.Error())
	}
}
