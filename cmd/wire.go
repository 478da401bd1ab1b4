package cmd

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/finmesh"
	"github.com/hupe1980/finmesh/advisor"
	"github.com/hupe1980/finmesh/config"
	"github.com/hupe1980/finmesh/logging"
	"github.com/hupe1980/finmesh/metrics"
	"github.com/hupe1980/finmesh/model"
	"github.com/hupe1980/finmesh/model/anthropic"
	"github.com/hupe1980/finmesh/model/gemini"
	"github.com/hupe1980/finmesh/model/openai"
	"github.com/hupe1980/finmesh/portfolio"
	"github.com/hupe1980/finmesh/search"
	"github.com/hupe1980/finmesh/server"
	"github.com/hupe1980/finmesh/tool"
	"github.com/hupe1980/finmesh/tracking"
	sentrytracker "github.com/hupe1980/finmesh/tracking/sentry"
)

type app struct {
	cfg     *config.Config
	logger  logging.Logger
	tracker tracking.Tracker
	metrics *metrics.Metrics
	store   portfolio.Store
	mesh    *finmesh.Finmesh
	checks  map[string]server.HealthChecker
	closers []func() error
}

func wireApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg, checks: map[string]server.HealthChecker{}}

	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	zl, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Env: cfg.Env})
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}
	a.logger = zl
	a.closers = append(a.closers, func() error {
		_ = zl.Sync()
		return nil
	})

	a.tracker = tracking.Noop{}
	if cfg.Sentry.DSN != "" {
		release := cfg.Sentry.Release
		if release == "" {
			release = version()
		}

		st, err := sentrytracker.New(cfg.Sentry.DSN, cfg.Env, release)
		if err != nil {
			return nil, fmt.Errorf("wire error tracker: %w", err)
		}
		a.tracker = st
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(reg)

	if a.store, err = a.wireStore(); err != nil {
		return nil, err
	}

	provider, err := a.wireSearch(ctx)
	if err != nil {
		return nil, err
	}

	llm, err := buildModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("wire model: %w", err)
	}

	defs := advisor.DefaultDefinitions()
	if cfg.Advisor.DefinitionsFile != "" {
		if defs, err = advisor.LoadDefinitions(cfg.Advisor.DefinitionsFile); err != nil {
			return nil, err
		}
	}

	a.mesh, err = finmesh.New(llm, func(o *finmesh.Options) {
		o.Definitions = defs
		o.Portfolios = a.store
		o.Search = provider
		o.Research = tool.ResearchOptions{
			Limit:   cfg.Search.Limit,
			Lang:    cfg.Search.Lang,
			Timeout: cfg.Search.Timeout,
		}
		o.MaxConcurrentRuns = cfg.Advisor.MaxConcurrentRuns
		o.Logger = a.logger
		o.Tracker = a.tracker
		o.Metrics = a.metrics
	})
	if err != nil {
		return nil, fmt.Errorf("wire advice pipeline: %w", err)
	}

	a.logger.Info("app.wired",
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Name,
		"portfolio_store", storeName(cfg.Database.Driver),
		"search_enabled", provider != nil,
		"error_tracking", cfg.Sentry.DSN != "",
	)

	return a, nil
}

func (a *app) wireStore() (portfolio.Store, error) {
	if a.cfg.Database.Driver == "" {
		return portfolio.NewInMemoryStore(), nil
	}

	store, err := portfolio.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("wire portfolio store: %w", err)
	}

	a.closers = append(a.closers, store.Close)
	a.checks["database"] = store

	return store, nil
}

// wireSearch builds the research backend: HTTP search behind a rate limiter
// behind a cache, so cache hits never spend rate budget. Without an API key
// research is disabled.
func (a *app) wireSearch(ctx context.Context) (search.Provider, error) {
	cfg := a.cfg.Search
	if cfg.APIKey == "" {
		a.logger.Warn("app.search.disabled", "reason", "no search api key configured")
		return nil, nil
	}

	var provider search.Provider = search.NewHTTPProvider(func(o *search.HTTPOptions) {
		o.BaseURL = cfg.BaseURL
		o.APIKey = cfg.APIKey
	})

	if cfg.RatePerMinute > 0 {
		provider = search.NewRateLimited(provider, cfg.RatePerMinute, cfg.Burst)
	}

	if cfg.CacheTTL <= 0 {
		return provider, nil
	}

	var cache search.Cache = search.NewMemoryCache()
	if a.cfg.Redis.Addr != "" {
		rc, err := search.NewRedisCache(ctx, search.RedisOptions{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("wire search cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		a.checks["redis"] = rc
		cache = rc
	}

	return search.NewCached(provider, cache, cfg.CacheTTL, a.logger), nil
}

func buildModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Name)
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderGemini:
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey
		})
	case config.ProviderMock:
		return model.NewMockModel("mock", config.ProviderMock), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// close releases resources in reverse wiring order and flushes the tracker.
func (a *app) close() error {
	var errs []error

	if a.tracker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := a.tracker.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func storeName(driver string) string {
	if driver == "" {
		return "memory"
	}
	return driver
}
