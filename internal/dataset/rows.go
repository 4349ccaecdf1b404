// Package dataset reads and writes the CSV files that hand records from one
// pipeline stage to the next.
package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/model"
)

// Column headers.
const (
	ColName             = "Company Name"
	ColSourceURL        = "Source URL"
	ColRating           = "Glassdoor Rating"
	ColEmployeeCount    = "Employee Count"
	ColMaxRating        = "Max Glassdoor Rating"
	ColMaxEmployeeCount = "Max Employee Count"
	ColCareersURL       = "Careers Site URL"
)

// headerAliases folds every stage's column names onto Row's tags.
var headerAliases = map[string]string{
	ColMaxRating:        ColRating,
	ColMaxEmployeeCount: ColEmployeeCount,
}

// Row is one data row from any stage's file. Columns a file lacks are empty.
type Row struct {
	Name          string `csv:"Company Name"`
	SourceURL     string `csv:"Source URL"`
	Rating        string `csv:"Glassdoor Rating"`
	EmployeeCount string `csv:"Employee Count"`
	CareersURL    string `csv:"Careers Site URL"`
}

// Attributes coerces the row's optional columns.
func (r Row) Attributes() model.Attributes {
	return model.Attributes{
		Rating:            model.ParseRating(r.Rating),
		EmployeeCountText: model.OptionalString(r.EmployeeCount),
		CareersURL:        model.OptionalString(r.CareersURL),
	}
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// Rows returns a lazy sequence over path's data rows. Each iteration reopens
// the file, so the sequence can be ranged over more than once. Rows without
// a name, or with a different field count than the header, are skipped. A
// missing file yields an error.
func Rows(path string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(Row{}, eris.Wrapf(err, "dataset: open %s", path))
			return
		}
		defer f.Close() //nolint:errcheck

		for row, err := range decodeRows(f, path) {
			if !yield(row, err) {
				return
			}
		}
	}
}

func decodeRows(r io.Reader, source string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		cr := newCSVReader(r)

		header, err := cr.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(Row{}, eris.Wrapf(err, "dataset: read header of %s", source))
			return
		}
		for i, col := range header {
			col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
			if alias, ok := headerAliases[col]; ok {
				col = alias
			}
			header[i] = col
		}

		dec, err := csvutil.NewDecoder(cr, header...)
		if err != nil {
			yield(Row{}, eris.Wrapf(err, "dataset: decoder for %s", source))
			return
		}

		line := 1
		for {
			line++
			var row Row
			err := dec.Decode(&row)
			if err == io.EOF {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.Is(err, csvutil.ErrFieldCount) || errors.As(err, &parseErr) {
					zap.L().Warn("dataset: skipping malformed row",
						zap.String("file", source),
						zap.Int("line", line),
						zap.Error(err),
					)
					continue
				}
				yield(Row{}, eris.Wrapf(err, "dataset: read %s", source))
				return
			}

			row.Name = strings.TrimSpace(row.Name)
			if row.Name == "" {
				zap.L().Warn("dataset: skipping row without a company name",
					zap.String("file", source),
					zap.Int("line", line),
				)
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Names loads the checkpoint set: every company name already present in
// path. A missing file is an empty set.
func Names(path string) (map[string]struct{}, error) {
	names := make(map[string]struct{})
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return names, nil
	}
	for row, err := range Rows(path) {
		if err != nil {
			return nil, err
		}
		names[row.Name] = struct{}{}
	}
	return names, nil
}

// ReadEntities loads the unique entities of path in first-seen order,
// carrying any rating and employee count columns as attributes.
func ReadEntities(path string) ([]model.Entity, error) {
	seen := make(map[string]bool)
	var entities []model.Entity
	for row, err := range Rows(path) {
		if err != nil {
			return nil, err
		}
		if seen[row.Name] {
			continue
		}
		seen[row.Name] = true

		e, ok := model.NewEntity(row.Name, row.SourceURL)
		if !ok {
			continue
		}
		attrs := row.Attributes()
		attrs.CareersURL = nil
		e.Attrs = attrs
		entities = append(entities, e)
	}
	return entities, nil
}

// Records adapts Rows to enrichment records, for aggregation.
func Records(path string) iter.Seq2[model.EnrichmentRecord, error] {
	return func(yield func(model.EnrichmentRecord, error) bool) {
		for row, err := range Rows(path) {
			if err != nil {
				yield(model.EnrichmentRecord{}, err)
				return
			}
			attrs := row.Attributes()
			rec := model.EnrichmentRecord{Name: row.Name, Attributes: attrs, Found: !attrs.Empty()}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
