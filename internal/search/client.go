// Package search turns a free-text query into a rendered search results page.
package search

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/ratings-cli/internal/scrape"
)

const defaultBaseURL = "https://www.google.com/search"

// Client performs search lookups. The timeout bounds the page fetch only;
// time spent queued behind the rate limiter is governed by ctx alone. A
// zero timeout leaves the fetch unbounded.
type Client interface {
	Search(ctx context.Context, query string, timeout time.Duration) (*Results, error)
}

// Results is one rendered results page. No structure is assumed; callers
// extract what they need from the markup.
type Results struct {
	Query string
	URL   string
	HTML  string
}

// Option configures the client.
type Option func(*engineClient)

// WithBaseURL overrides the default search endpoint.
func WithBaseURL(u string) Option {
	return func(c *engineClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRateLimit bounds lookups to rps per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *engineClient) {
		if rps > 0 {
			c.limiter = NewAdaptiveLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

type engineClient struct {
	fetcher scrape.Fetcher
	baseURL string
	limiter *AdaptiveLimiter
}

// NewClient creates a search client that renders result pages with fetcher.
func NewClient(fetcher scrape.Fetcher, opts ...Option) Client {
	c := &engineClient{
		fetcher: fetcher,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// QueryURL builds the results-page URL for query.
func QueryURL(baseURL, query string) string {
	return baseURL + "?q=" + url.QueryEscape(query)
}

func (c *engineClient) Search(ctx context.Context, query string, timeout time.Duration) (*Results, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "search: wait for rate limiter")
		}
	}

	fetchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := QueryURL(c.baseURL, query)
	page, err := c.fetcher.Fetch(fetchCtx, target)
	if err != nil {
		var blocked *scrape.BlockedError
		if c.limiter != nil && errors.As(err, &blocked) {
			c.limiter.OnBlocked()
		}
		return nil, err
	}
	if c.limiter != nil {
		c.limiter.OnSuccess()
	}

	return &Results{Query: query, URL: target, HTML: page.HTML}, nil
}
