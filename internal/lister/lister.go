// Package lister scrapes company names from listing pages.
package lister

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/model"
	"github.com/sells-group/ratings-cli/internal/resilience"
	"github.com/sells-group/ratings-cli/internal/scrape"
)

// Lister fetches listing pages and extracts entities from them.
type Lister struct {
	fetcher     scrape.Fetcher
	retry       resilience.RetryConfig
	maxPages    int
	concurrency int
}

// New creates a Lister. maxPages caps discovered pagination, zero meaning
// no cap.
func New(fetcher scrape.Fetcher, retry resilience.RetryConfig, maxPages, concurrency int) *Lister {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Lister{fetcher: fetcher, retry: retry, maxPages: maxPages, concurrency: concurrency}
}

// List scrapes every source and returns the unique entities in first-seen
// order. A source that cannot be fetched is logged and skipped; List fails
// only when every source failed. Finding no names is not an error.
func (l *Lister) List(ctx context.Context, sources []config.SourceConfig) ([]model.Entity, error) {
	if len(sources) == 0 {
		return nil, eris.New("lister: no sources configured")
	}

	seen := make(map[string]bool)
	var out []model.Entity
	var lastErr error
	failed := 0

	for _, src := range sources {
		entities, err := l.listSource(ctx, src)
		if err != nil {
			failed++
			lastErr = err
			zap.L().Error("lister: source failed", zap.String("url", src.URL), zap.Error(err))
			continue
		}

		before := len(out)
		for _, e := range entities {
			if seen[e.Name] {
				continue
			}
			seen[e.Name] = true
			out = append(out, e)
		}
		zap.L().Info("lister: source scraped",
			zap.String("url", src.URL),
			zap.Int("extracted", len(entities)),
			zap.Int("new", len(out)-before),
		)
	}

	if failed == len(sources) {
		return nil, eris.Wrap(lastErr, "lister: all sources failed")
	}
	return out, nil
}

func (l *Lister) listSource(ctx context.Context, src config.SourceConfig) ([]model.Entity, error) {
	if src.URL == "" || src.NameSelector == "" {
		return nil, eris.New("lister: source needs url and name_selector")
	}

	first, err := l.fetchDoc(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	pages := MaxPage(first, src.PaginationSelector)
	if l.maxPages > 0 {
		pages = min(pages, l.maxPages)
	}
	zap.L().Info("lister: pages discovered", zap.String("url", src.URL), zap.Int("pages", pages))

	perPage := make([][]model.Entity, pages)
	if pages == 1 {
		perPage[0] = ExtractEntities(first, src.URL, src)
	} else {
		// Every page, including the first, is fetched through its page=N URL.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.concurrency)
		for i := range pages {
			g.Go(func() error {
				pageURL, err := PageURL(src.URL, i+1)
				if err != nil {
					return eris.Wrapf(err, "lister: page url for %s", src.URL)
				}
				doc, err := l.fetchDoc(gctx, pageURL)
				if err != nil {
					zap.L().Warn("lister: skipping page", zap.String("url", pageURL), zap.Error(err))
					return nil
				}
				perPage[i] = ExtractEntities(doc, pageURL, src)
				zap.L().Debug("lister: page scraped", zap.String("url", pageURL), zap.Int("companies", len(perPage[i])))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var entities []model.Entity
	for _, p := range perPage {
		entities = append(entities, p...)
	}
	return entities, nil
}

func (l *Lister) fetchDoc(ctx context.Context, pageURL string) (*goquery.Document, error) {
	retry := l.retry
	retry.OnRetry = resilience.RetryLogger("list", pageURL)

	page, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*scrape.Page, error) {
		return l.fetcher.Fetch(ctx, pageURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "lister: fetch %s", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, eris.Wrapf(err, "lister: parse %s", pageURL)
	}
	return doc, nil
}
