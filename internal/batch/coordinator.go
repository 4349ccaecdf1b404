// Package batch drives an enricher over an entity list in fixed-size
// chunks, appending each finished chunk to a durable output file so an
// interrupted run resumes where it stopped.
package batch

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ratings-cli/internal/dataset"
	"github.com/sells-group/ratings-cli/internal/enrich"
	"github.com/sells-group/ratings-cli/internal/model"
)

// Appender persists one chunk of records as a single write.
type Appender interface {
	Append(recs []model.EnrichmentRecord) error
}

// Options controls chunking and persistence.
type Options struct {
	ChunkSize int
	// ConcurrencyLimit bounds in-flight lookups within a chunk. Values
	// outside 1..ChunkSize mean ChunkSize.
	ConcurrencyLimit int
	// PersistEmpty writes records with nothing found. When false such
	// entities are retried on the next run.
	PersistEmpty bool
}

// Summary reports a run's counts.
type Summary struct {
	RunID     string
	Total     int // unique input entities
	Skipped   int // already present in the output
	Processed int
	Found     int
	Missed    int
	Blocked   int
	Persisted int
	Chunks    int
	Elapsed   time.Duration
}

// Coordinator runs an Enricher over the entities not yet in the output.
type Coordinator struct {
	opts     Options
	enricher enrich.Enricher
	pauser   Pauser
}

// New creates a Coordinator. A nil pauser means no pause between chunks.
func New(opts Options, enricher enrich.Enricher, pauser Pauser) *Coordinator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}
	if opts.ConcurrencyLimit <= 0 || opts.ConcurrencyLimit > opts.ChunkSize {
		opts.ConcurrencyLimit = opts.ChunkSize
	}
	if pauser == nil {
		pauser = NoPause{}
	}
	return &Coordinator{opts: opts, enricher: enricher, pauser: pauser}
}

// Process locks outputPath, loads its checkpoint set and runs the remaining
// entities. The file gets a header row if it does not exist yet.
func (c *Coordinator) Process(ctx context.Context, entities []model.Entity, outputPath string, schema dataset.Schema) (Summary, error) {
	out, err := dataset.OpenAppender(outputPath, schema)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			zap.L().Error("batch: close output", zap.String("path", outputPath), zap.Error(cerr))
		}
	}()

	done, err := dataset.Names(outputPath)
	if err != nil {
		return Summary{}, eris.Wrap(err, "batch: load checkpoint")
	}
	return c.Run(ctx, entities, done, out)
}

// Remaining returns the entities whose names are not in done, dropping
// repeated names and keeping input order.
func Remaining(entities []model.Entity, done map[string]struct{}) []model.Entity {
	seen := make(map[string]bool, len(entities))
	var todo []model.Entity
	for _, e := range entities {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		if _, ok := done[e.Name]; ok {
			continue
		}
		todo = append(todo, e)
	}
	return todo
}

// Run enriches every entity not in done. Each chunk is fanned out, joined
// and appended before the next one starts. A failed append aborts the run;
// earlier chunks stay on disk. Cancelling ctx stops the run at the next
// chunk boundary but lets the current chunk finish and persist.
func (c *Coordinator) Run(ctx context.Context, entities []model.Entity, done map[string]struct{}, out Appender) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	log := zap.L().With(
		zap.String("run_id", sum.RunID),
		zap.String("enricher", c.enricher.Name()),
	)

	todo := Remaining(entities, done)
	sum.Total = uniqueNames(entities)
	sum.Skipped = sum.Total - len(todo)

	chunks := slices.Collect(slices.Chunk(todo, c.opts.ChunkSize))
	log.Info("batch: starting",
		zap.Int("total", sum.Total),
		zap.Int("skipped", sum.Skipped),
		zap.Int("remaining", len(todo)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.opts.ChunkSize),
		zap.Int("concurrency", c.opts.ConcurrencyLimit),
	)

	// In-flight lookups are bounded by their own timeouts, not by ctx.
	lookupCtx := context.WithoutCancel(ctx)

	for i, chunk := range chunks {
		recs := c.runChunk(lookupCtx, chunk)

		keep := make([]model.EnrichmentRecord, 0, len(recs))
		blocked := 0
		for _, rec := range recs {
			if rec.Blocked {
				blocked++
			}
			if rec.Found {
				sum.Found++
			} else {
				sum.Missed++
			}
			if rec.Found || c.opts.PersistEmpty {
				keep = append(keep, rec)
			}
		}

		if err := out.Append(keep); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, eris.Wrapf(err, "batch: persist chunk %d/%d", i+1, len(chunks))
		}
		sum.Chunks++
		sum.Processed += len(chunk)
		sum.Persisted += len(keep)
		sum.Blocked += blocked

		log.Info("batch: chunk complete",
			zap.Int("chunk", i+1),
			zap.Int("of", len(chunks)),
			zap.Int("size", len(chunk)),
			zap.Int("persisted", len(keep)),
			zap.Int("processed", sum.Processed),
			zap.Int("remaining", len(todo)-sum.Processed),
		)
		if blocked > 0 {
			log.Warn("batch: lookups blocked, consider changing egress",
				zap.Int("chunk", i+1),
				zap.Int("blocked", blocked),
			)
		}

		if i == len(chunks)-1 {
			break
		}
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, eris.Wrap(err, "batch: interrupted")
		}
		if err := c.pauser.Pause(ctx, i+1, len(chunks)); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, eris.Wrap(err, "batch: pause")
		}
	}

	sum.Elapsed = time.Since(start)
	log.Info("batch: complete",
		zap.Int("processed", sum.Processed),
		zap.Int("found", sum.Found),
		zap.Int("missed", sum.Missed),
		zap.Int("blocked", sum.Blocked),
		zap.Int("persisted", sum.Persisted),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// runChunk enriches chunk concurrently and returns records in chunk order.
func (c *Coordinator) runChunk(ctx context.Context, chunk []model.Entity) []model.EnrichmentRecord {
	recs := make([]model.EnrichmentRecord, len(chunk))

	var g errgroup.Group
	g.SetLimit(c.opts.ConcurrencyLimit)
	for i, e := range chunk {
		g.Go(func() error {
			recs[i] = c.enricher.Enrich(ctx, e)
			return nil
		})
	}
	_ = g.Wait() // enrichers never fail

	return recs
}

func uniqueNames(entities []model.Entity) int {
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		seen[e.Name] = struct{}{}
	}
	return len(seen)
}
