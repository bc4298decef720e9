package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/enrich"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/history"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/job"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/joblog"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/oracle"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/procs"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/quality"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/scrape"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/search"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/store"
	anthropicpkg "github.com/ian-dev-s/ttwf-lead-automation-sub000/pkg/anthropic"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/pkg/jina"
)

// env holds the wired application graph shared by the CLI commands.
type env struct {
	Store    store.Store
	Tracker  *procs.Tracker
	Registry *job.Registry
	Logs     *joblog.Logger
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func buildEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tracker := procs.NewTracker(procs.NewLister(), procs.NewKiller(), st, cfg.Browser.TagPrefix)

	analyzer := quality.NewClient(cfg.Quality.APIKey,
		quality.WithBaseURL(cfg.Quality.BaseURL),
		quality.WithRateLimit(cfg.Quality.RatePerSecond),
		quality.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Quality.TimeoutSecs) * time.Second}),
	)
	gate := quality.NewGate(analyzer,
		quality.NewCache(time.Duration(cfg.Quality.CacheTTLHours)*time.Hour),
		nil,
		quality.GateConfig{
			ProspectThreshold: cfg.Quality.ProspectThreshold,
			InitialDelay:      time.Duration(cfg.Quality.InitialDelayMillis) * time.Millisecond,
			MaxAttempts:       cfg.Quality.MaxAttempts,
			InitialBackoff:    time.Duration(cfg.Quality.BackoffMillis) * time.Millisecond,
		},
	)

	jinaClient := jina.NewClient(cfg.Scrape.SearchKey,
		jina.WithSearchBaseURL(cfg.Scrape.SearchBaseURL),
	)
	scraper := scrape.NewChain(
		scrape.NewLocalScraper(),
		scrape.NewJinaScraper(jinaClient),
	)
	searcher := scrape.NewJinaSearcher(jinaClient)

	orc := oracle.NewAnthropic(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
	)

	logs := joblog.New(cfg.Jobs.LogBufferSize)

	deps := job.Deps{
		Store:    st,
		Tracker:  tracker,
		Gate:     gate,
		Pipeline: enrich.New(orc, scraper, searcher),
		History:  history.New(st),
		Logs:     logs,
		NewSource: func(jobID string) search.Source {
			return search.NewBrowserSource(search.BrowserConfig{
				Executable: cfg.Browser.ExecutablePath,
				TagPrefix:  cfg.Browser.TagPrefix,
				JobID:      jobID,
			}, tracker)
		},
	}

	return &env{
		Store:    st,
		Tracker:  tracker,
		Registry: job.NewRegistry(deps),
		Logs:     logs,
	}, nil
}
