// Package aggregate folds raw enrichment records into one canonical record
// per company.
package aggregate

import (
	"cmp"
	"iter"
	"slices"

	"github.com/rotisserie/eris"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sells-group/ratings-cli/internal/model"
)

// Options controls filtering and ordering.
type Options struct {
	// MinRating drops records rated below it. Zero keeps everything.
	MinRating float64
	// Locale selects the collation used for the name tie-break.
	Locale string
}

// Stats summarizes one aggregation pass.
type Stats struct {
	Raw      int // records read
	Unique   int // distinct names
	Retained int // names left after filtering
}

// Aggregate folds, filters and sorts records.
func Aggregate(records iter.Seq2[model.EnrichmentRecord, error], opts Options) ([]model.AggregatedRecord, Stats, error) {
	folded, raw, err := Fold(records)
	if err != nil {
		return nil, Stats{}, err
	}
	kept := Filter(folded, opts.MinRating)
	Sort(kept, opts.Locale)
	return kept, Stats{Raw: raw, Unique: len(folded), Retained: len(kept)}, nil
}

// Fold groups records by exact name and keeps the maximum rating and
// employee count seen for each. Absent values contribute nothing; a name
// never observed with a value gets zero. It also returns the number of
// records consumed.
func Fold(records iter.Seq2[model.EnrichmentRecord, error]) ([]model.AggregatedRecord, int, error) {
	index := make(map[string]int)
	var out []model.AggregatedRecord
	raw := 0

	for rec, err := range records {
		if err != nil {
			return nil, raw, eris.Wrap(err, "aggregate: read records")
		}
		raw++

		i, ok := index[rec.Name]
		if !ok {
			i = len(out)
			index[rec.Name] = i
			out = append(out, model.AggregatedRecord{Name: rec.Name})
		}
		agg := &out[i]
		if rec.Rating != nil {
			agg.Rating = max(agg.Rating, *rec.Rating)
		}
		if rec.EmployeeCountText != nil {
			if n, ok := model.ParseEmployeeCount(*rec.EmployeeCountText); ok {
				agg.EmployeeCount = max(agg.EmployeeCount, n)
			}
		}
	}
	return out, raw, nil
}

// Filter returns the records rated at least minRating. A non-positive
// minRating keeps all records.
func Filter(recs []model.AggregatedRecord, minRating float64) []model.AggregatedRecord {
	if minRating <= 0 {
		return recs
	}
	kept := make([]model.AggregatedRecord, 0, len(recs))
	for _, r := range recs {
		if r.Rating >= minRating {
			kept = append(kept, r)
		}
	}
	return kept
}

// Sort orders recs by rating descending, then by name descending under the
// locale's collation. Names the collator considers equal fall back to a
// byte comparison so the order never depends on input order.
func Sort(recs []model.AggregatedRecord, locale string) {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	c := collate.New(tag)

	slices.SortStableFunc(recs, func(a, b model.AggregatedRecord) int {
		if n := cmp.Compare(b.Rating, a.Rating); n != 0 {
			return n
		}
		if n := c.CompareString(b.Name, a.Name); n != 0 {
			return n
		}
		return cmp.Compare(b.Name, a.Name)
	})
}
