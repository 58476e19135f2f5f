package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/dom"
	"github.com/sells-group/engagement-cli/internal/extract"
	"github.com/sells-group/engagement-cli/internal/metrics"
	"github.com/sells-group/engagement-cli/internal/pipeline"
	"github.com/sells-group/engagement-cli/internal/resilience"
	"github.com/sells-group/engagement-cli/internal/store"
	"github.com/sells-group/engagement-cli/internal/vision"
	anthropicpkg "github.com/sells-group/engagement-cli/pkg/anthropic"
	"github.com/sells-group/engagement-cli/pkg/ollama"
)

// appEnv holds the handles shared by the extract, batch and serve commands.
type appEnv struct {
	Store    store.Store // nil unless requested
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline validates the config for mode and builds the pipeline, and
// the store when withStore is set. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, withStore bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	table, err := extract.DefaultTable()
	if err != nil {
		return nil, eris.Wrap(err, "load strategy table")
	}

	env := &appEnv{Metrics: metrics.New(prometheus.DefaultRegisterer)}

	extractor := extract.New(table,
		extract.WithElementWait(cfg.Extract.ElementWait),
		extract.WithPageLoadRetry(resilience.FromPageLoadConfig(cfg.Extract.PageLoadAttempts, cfg.Extract.PageLoadBackoff)),
		extract.WithMetrics(env.Metrics),
	)

	opts := []pipeline.Option{
		pipeline.WithMetrics(env.Metrics),
		pipeline.WithRequestDelay(cfg.Batch.RequestDelay),
	}
	if cfg.Vision.Enabled {
		analyzer, err := initAnalyzer(ctx, env.Metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithAnalyzer(analyzer))
	}

	env.Pipeline = pipeline.New(initProvider(), extractor, opts...)

	if withStore {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	return env, nil
}

func initProvider() dom.Provider {
	if cfg.Browser.Mode == "static" {
		return dom.NewStaticProvider(dom.WithUserAgent(cfg.Browser.UserAgent))
	}
	return dom.NewChromeProvider(dom.ChromeOptions{
		Headless:        cfg.Browser.Headless,
		ExecPath:        cfg.Browser.ExecPath,
		UserAgent:       cfg.Browser.UserAgent,
		PageLoadTimeout: cfg.Browser.PageLoadTimeout,
	})
}

func initAnalyzer(ctx context.Context, m *metrics.Metrics) (*vision.Analyzer, error) {
	var model vision.Model
	switch cfg.Vision.Provider {
	case "ollama":
		om := vision.NewOllamaModel(ollama.NewClient(ollama.WithBaseURL(cfg.Ollama.BaseURL)), cfg.Ollama.Model)
		if err := om.Check(ctx); err != nil {
			return nil, eris.Wrap(err, "check ollama model")
		}
		model = om
	default:
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		model = vision.NewAnthropicModel(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	}

	breakerCfg := resilience.FromCircuitConfig(cfg.Vision.FailureThreshold, cfg.Vision.ResetTimeout)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("vision: circuit breaker state change",
			zap.String("model", model.Name()),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return vision.NewAnalyzer(model,
		vision.WithTimeout(cfg.Vision.Timeout),
		vision.WithCircuitBreaker(resilience.NewCircuitBreaker(breakerCfg)),
		vision.WithMetrics(m),
	), nil
}

// initStore opens and migrates the configured record store.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
