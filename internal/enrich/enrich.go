// Package enrich looks up per-company attributes through the search channel.
// Enrichers never return errors: every failure becomes an empty record with
// a logged cause.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/model"
	"github.com/sells-group/ratings-cli/internal/scrape"
	"github.com/sells-group/ratings-cli/internal/search"
)

// Enricher produces one record per entity.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, e model.Entity) model.EnrichmentRecord
}

const defaultTimeout = 30 * time.Second

// BuildQuery substitutes name into a query template containing %s. A
// template without %s is appended to the name.
func BuildQuery(template, name string) string {
	if strings.Contains(template, "%s") {
		return strings.ReplaceAll(template, "%s", name)
	}
	return strings.TrimSpace(name + " " + template)
}

// lookup runs one search, bounding the page fetch by timeout, and parses
// the results page. Queueing behind the rate limiter is not timed.
func lookup(ctx context.Context, client search.Client, timeout time.Duration, query string) (doc *goquery.Document, html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrich: panic during lookup: %v", r)
		}
	}()

	res, err := client.Search(ctx, query, timeout)
	if err != nil {
		return nil, "", err
	}
	if res == nil {
		return nil, "", eris.New("enrich: empty search response")
	}

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		// Unparseable markup still gets the text-pattern pass.
		return nil, res.HTML, nil
	}
	return doc, res.HTML, nil
}

// logOutcome reports one entity's result.
func logOutcome(enricher string, rec model.EnrichmentRecord) {
	log := zap.L().With(
		zap.String("enricher", enricher),
		zap.String("company", rec.Name),
	)
	if !rec.Found {
		log.Warn("enrich: no attributes found", zap.String("cause", rec.Cause))
		return
	}
	fields := []zap.Field{}
	if rec.Rating != nil {
		fields = append(fields, zap.Float64("rating", *rec.Rating))
	}
	if rec.EmployeeCountText != nil {
		fields = append(fields, zap.String("employees", *rec.EmployeeCountText))
	}
	if rec.CareersURL != nil {
		fields = append(fields, zap.String("careers_url", *rec.CareersURL))
	}
	log.Info("enrich: fetched", fields...)
}

// markFailed records a lookup failure on rec.
func markFailed(rec *model.EnrichmentRecord, err error) {
	rec.Cause = fmt.Sprintf("lookup failed: %v", err)
	var blocked *scrape.BlockedError
	rec.Blocked = errors.As(err, &blocked)
}
