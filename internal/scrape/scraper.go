// Package scrape fetches rendered or raw page markup for the listing and
// search stages.
package scrape

import (
	"context"
	"fmt"
)

// Page holds fetched markup with its source.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
	Source     string // e.g. "browser", "local_http"
}

// Fetcher fetches a single URL and returns its markup.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
}

// BlockedError reports that the target served an anti-bot interstitial
// instead of content.
type BlockedError struct {
	Type BlockType
	URL  string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("scrape: blocked (%s) fetching %s", e.Type, e.URL)
}
