package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ratings-cli/internal/model"
)

type entityRow struct {
	Name string `csv:"Company Name"`
}

type entityURLRow struct {
	Name      string `csv:"Company Name"`
	SourceURL string `csv:"Source URL"`
}

type aggregatedRow struct {
	Name          string `csv:"Company Name"`
	Rating        string `csv:"Max Glassdoor Rating"`
	EmployeeCount string `csv:"Max Employee Count"`
}

// WriteEntities replaces path with the lister's output. The Source URL
// column is only written when some entity has one.
func WriteEntities(path string, entities []model.Entity) error {
	withURL := false
	for _, e := range entities {
		if e.SourceURL != "" {
			withURL = true
			break
		}
	}

	rows := make([]any, 0, len(entities))
	for _, e := range entities {
		if withURL {
			rows = append(rows, entityURLRow{Name: e.Name, SourceURL: e.SourceURL})
		} else {
			rows = append(rows, entityRow{Name: e.Name})
		}
	}
	var header any = entityRow{}
	if withURL {
		header = entityURLRow{}
	}
	return writeAtomic(path, header, rows)
}

// WriteAggregated replaces path with the aggregated dataset. Zero values
// are rendered as the sentinel.
func WriteAggregated(path string, recs []model.AggregatedRecord) error {
	rows := make([]any, 0, len(recs))
	for _, r := range recs {
		row := aggregatedRow{Name: r.Name, Rating: model.Sentinel, EmployeeCount: model.Sentinel}
		if r.Rating > 0 {
			row.Rating = strconv.FormatFloat(r.Rating, 'f', -1, 64)
		}
		if r.EmployeeCount > 0 {
			row.EmployeeCount = strconv.Itoa(r.EmployeeCount)
		}
		rows = append(rows, row)
	}
	return writeAtomic(path, aggregatedRow{}, rows)
}

// writeAtomic writes to a sibling temp file and renames it over path.
func writeAtomic(path string, header any, rows []any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "dataset: create temp for %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	w := csv.NewWriter(tmp)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(header); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "dataset: encode header")
	}
	enc.AutoHeader = false
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = tmp.Close()
			return eris.Wrap(err, "dataset: encode row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "dataset: write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "dataset: close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "dataset: replace %s", path)
	}
	return nil
}
