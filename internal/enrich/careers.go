package enrich

import (
	"context"
	"time"

	"github.com/sells-group/ratings-cli/internal/model"
	"github.com/sells-group/ratings-cli/internal/search"
)

// DefaultCareersQuery finds a company's job board.
const DefaultCareersQuery = "%s view job openings"

// Careers finds a careers-site URL and carries the entity's earlier
// rating and employee count forward into its record.
type Careers struct {
	client  search.Client
	query   string
	timeout time.Duration
}

// NewCareers creates a Careers enricher.
func NewCareers(client search.Client, query string, timeout time.Duration) *Careers {
	if query == "" {
		query = DefaultCareersQuery
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Careers{client: client, query: query, timeout: timeout}
}

func (c *Careers) Name() string { return "careers" }

// Enrich sets Found only when a careers URL was extracted; carried values
// do not count.
func (c *Careers) Enrich(ctx context.Context, e model.Entity) model.EnrichmentRecord {
	rec := model.EnrichmentRecord{
		Name: e.Name,
		Attributes: model.Attributes{
			Rating:            e.Attrs.Rating,
			EmployeeCountText: e.Attrs.EmployeeCountText,
		},
	}

	doc, _, err := lookup(ctx, c.client, c.timeout, BuildQuery(c.query, e.Name))
	if err != nil {
		markFailed(&rec, err)
		logOutcome(c.Name(), rec)
		return rec
	}

	rec.CareersURL = ExtractFirstResultURL(doc)
	rec.Found = rec.CareersURL != nil
	if !rec.Found {
		rec.Cause = "no result link in results"
	}

	logOutcome(c.Name(), rec)
	return rec
}
