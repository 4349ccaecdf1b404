package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/scrape"
	"github.com/sells-group/ratings-cli/internal/search"
)

// pipelineEnv holds the shared fetch stack used by the list, enrich and
// careers commands.
type pipelineEnv struct {
	Fetcher scrape.Fetcher
	Search  search.Client
	browser *scrape.BrowserFetcher // may be nil
}

// Close shuts down the browser, if one was launched.
func (pe *pipelineEnv) Close() {
	if pe.browser != nil {
		pe.browser.Close()
	}
}

// initPipeline builds the fetch chain and search client. The browser is
// tried first when enabled; if it cannot launch the plain HTTP fetcher is
// used alone. Callers should defer env.Close().
func initPipeline(c *config.Config) (*pipelineEnv, error) {
	if c == nil {
		return nil, eris.New("pipeline: config not loaded")
	}

	env := &pipelineEnv{}
	local := scrape.NewLocalScraper(c.Batch.Timeout(), c.Browser.UserAgent)

	if c.Browser.Enabled {
		b, err := scrape.NewBrowserFetcher(scrape.BrowserOptions{
			Headless:  c.Browser.Headless,
			UserAgent: c.Browser.UserAgent,
			ExecPath:  c.Browser.ExecPath,
			Timeout:   c.Batch.Timeout(),
		})
		if err != nil {
			zap.L().Warn("pipeline: browser unavailable, falling back to plain http", zap.Error(err))
		} else {
			env.browser = b
		}
	}

	if env.browser != nil {
		env.Fetcher = scrape.NewChain(env.browser, local)
	} else {
		env.Fetcher = local
	}

	env.Search = search.NewClient(env.Fetcher,
		search.WithBaseURL(c.Search.BaseURL),
		search.WithRateLimit(c.Search.RateLimitRPS),
	)

	zap.L().Info("pipeline: fetch stack ready",
		zap.String("fetcher", env.Fetcher.Name()),
		zap.Float64("search_rps", c.Search.RateLimitRPS),
	)
	return env, nil
}
