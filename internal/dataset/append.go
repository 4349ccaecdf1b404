package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/model"
)

// Schema selects the columns an Appender writes.
type Schema int

const (
	// SchemaDetails writes Company Name, Glassdoor Rating, Employee Count.
	SchemaDetails Schema = iota
	// SchemaCareers writes the aggregated columns plus Careers Site URL.
	SchemaCareers
)

type detailsRow struct {
	Name          string `csv:"Company Name"`
	Rating        string `csv:"Glassdoor Rating"`
	EmployeeCount string `csv:"Employee Count"`
}

type careersRow struct {
	Name          string `csv:"Company Name"`
	Rating        string `csv:"Max Glassdoor Rating"`
	EmployeeCount string `csv:"Max Employee Count"`
	CareersURL    string `csv:"Careers Site URL"`
}

func (s Schema) header() any {
	if s == SchemaCareers {
		return careersRow{}
	}
	return detailsRow{}
}

func (s Schema) row(rec model.EnrichmentRecord) any {
	rating := formatRating(rec.Rating)
	employees := orSentinel(rec.EmployeeCountText)
	if s == SchemaCareers {
		return careersRow{Name: rec.Name, Rating: rating, EmployeeCount: employees, CareersURL: orSentinel(rec.CareersURL)}
	}
	return detailsRow{Name: rec.Name, Rating: rating, EmployeeCount: employees}
}

func formatRating(v *float64) string {
	if v == nil {
		return model.Sentinel
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func orSentinel(v *string) string {
	if v == nil {
		return model.Sentinel
	}
	return *v
}

// Appender is the single writer of a durable output file. It holds an
// exclusive lock for its lifetime and only ever appends whole chunks.
type Appender struct {
	path   string
	schema Schema
	file   *os.File
	lock   *flock.Flock
	// out receives chunk bytes; it is the file itself outside tests.
	out io.Writer
}

// OpenAppender locks path, creates it with a header row if it is missing or
// empty, and positions writes at the end.
func OpenAppender(path string, schema Schema) (*Appender, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: lock %s", path)
	}
	if !locked {
		return nil, eris.Errorf("dataset: %s is locked by another run", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}

	a := &Appender{path: path, schema: schema, file: f, lock: lock, out: f}

	info, err := f.Stat()
	if err != nil {
		_ = a.Close()
		return nil, eris.Wrapf(err, "dataset: stat %s", path)
	}
	if info.Size() == 0 {
		if err := a.writeHeader(); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Appender) writeHeader() error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := csvutil.NewEncoder(w).EncodeHeader(a.schema.header()); err != nil {
		return eris.Wrap(err, "dataset: encode header")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush header")
	}
	return a.write(buf.Bytes())
}

// Append writes all records followed by an fsync. A failed write or sync
// truncates the file back to where the chunk began, so a chunk is either
// fully on disk or not at all visible to a later resume.
func (a *Appender) Append(recs []model.EnrichmentRecord) error {
	if len(recs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	for _, rec := range recs {
		if err := enc.Encode(a.schema.row(rec)); err != nil {
			return eris.Wrapf(err, "dataset: encode %q", rec.Name)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "dataset: flush rows")
	}
	return a.write(buf.Bytes())
}

func (a *Appender) write(b []byte) error {
	info, err := a.file.Stat()
	if err != nil {
		return eris.Wrapf(err, "dataset: stat %s", a.path)
	}
	offset := info.Size()

	n, err := a.out.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = a.file.Sync()
		if err != nil {
			return a.rollback(offset, eris.Wrapf(err, "dataset: sync %s", a.path))
		}
		return nil
	}
	return a.rollback(offset, eris.Wrapf(err, "dataset: append to %s", a.path))
}

// rollback drops a partially written chunk.
func (a *Appender) rollback(offset int64, cause error) error {
	if err := a.file.Truncate(offset); err != nil {
		zap.L().Error("dataset: truncate after failed append",
			zap.String("path", a.path),
			zap.Int64("offset", offset),
			zap.Error(err),
		)
		return cause
	}
	if err := a.file.Sync(); err != nil {
		zap.L().Warn("dataset: sync after truncate", zap.String("path", a.path), zap.Error(err))
	}
	return cause
}

// Close releases the file and its lock.
func (a *Appender) Close() error {
	closeErr := a.file.Close()
	unlockErr := a.lock.Unlock()
	if closeErr != nil {
		return eris.Wrapf(closeErr, "dataset: close %s", a.path)
	}
	if unlockErr != nil {
		return eris.Wrapf(unlockErr, "dataset: unlock %s", a.path)
	}
	return nil
}
