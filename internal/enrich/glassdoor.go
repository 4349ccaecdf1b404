package enrich

import (
	"context"
	"time"

	"github.com/sells-group/ratings-cli/internal/model"
	"github.com/sells-group/ratings-cli/internal/search"
)

// DefaultGlassdoorQuery targets Glassdoor snippets for rating and size.
const DefaultGlassdoorQuery = "%s company size site:glassdoor.com"

// Glassdoor extracts a rating and an employee-count bucket from the
// search snippets for a company's Glassdoor page.
type Glassdoor struct {
	client  search.Client
	query   string
	timeout time.Duration
}

// NewGlassdoor creates a Glassdoor enricher. Empty query and non-positive
// timeout fall back to defaults.
func NewGlassdoor(client search.Client, query string, timeout time.Duration) *Glassdoor {
	if query == "" {
		query = DefaultGlassdoorQuery
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Glassdoor{client: client, query: query, timeout: timeout}
}

func (g *Glassdoor) Name() string { return "glassdoor" }

// Enrich looks up e and never fails: misses and errors leave both
// attributes absent.
func (g *Glassdoor) Enrich(ctx context.Context, e model.Entity) model.EnrichmentRecord {
	rec := model.EnrichmentRecord{Name: e.Name}

	doc, html, err := lookup(ctx, g.client, g.timeout, BuildQuery(g.query, e.Name))
	if err != nil {
		markFailed(&rec, err)
		logOutcome(g.Name(), rec)
		return rec
	}

	rec.Rating = ExtractRating(doc, html)
	rec.EmployeeCountText = ExtractEmployeeCount(doc)
	rec.Found = rec.Rating != nil || rec.EmployeeCountText != nil
	if !rec.Found {
		rec.Cause = "no rating or employee count in results"
	}

	logOutcome(g.Name(), rec)
	return rec
}
