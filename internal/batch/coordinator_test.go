package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ratings-cli/internal/dataset"
	"github.com/sells-group/ratings-cli/internal/model"
)

// stubEnricher returns a rating for every name except those in miss, and
// records which names it saw.
type stubEnricher struct {
	mu       sync.Mutex
	seen     []string
	miss     map[string]bool
	blocked  map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *stubEnricher) Name() string { return "stub" }

func (s *stubEnricher) Enrich(_ context.Context, e model.Entity) model.EnrichmentRecord {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.seen = append(s.seen, e.Name)
	s.mu.Unlock()

	rec := model.EnrichmentRecord{Name: e.Name}
	if s.blocked[e.Name] {
		rec.Blocked = true
		rec.Cause = "blocked"
		return rec
	}
	if s.miss[e.Name] {
		rec.Cause = "lookup failed: context deadline exceeded"
		return rec
	}
	rec.Rating = model.Float64(4.0)
	rec.Found = true
	return rec
}

func (s *stubEnricher) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// memAppender collects chunks.
type memAppender struct {
	chunks [][]model.EnrichmentRecord
	failAt int // 1-based chunk to fail on; 0 never fails
}

func (m *memAppender) Append(recs []model.EnrichmentRecord) error {
	if m.failAt > 0 && len(m.chunks)+1 == m.failAt {
		return eris.New("disk full")
	}
	m.chunks = append(m.chunks, recs)
	return nil
}

// countingPauser records pause calls.
type countingPauser struct{ calls []int }

func (p *countingPauser) Pause(_ context.Context, done, _ int) error {
	p.calls = append(p.calls, done)
	return nil
}

func entities(n int) []model.Entity {
	out := make([]model.Entity, n)
	for i := range out {
		out[i] = model.Entity{Name: fmt.Sprintf("Company %02d", i+1)}
	}
	return out
}

func TestRun_ResumesRemainingInChunks(t *testing.T) {
	all := entities(25)
	done := make(map[string]struct{})
	for _, e := range all[:10] {
		done[e.Name] = struct{}{}
	}

	enr := &stubEnricher{}
	out := &memAppender{}
	pauser := &countingPauser{}

	sum, err := New(Options{ChunkSize: 10, PersistEmpty: true}, enr, pauser).Run(context.Background(), all, done, out)
	require.NoError(t, err)

	assert.Equal(t, 25, sum.Total)
	assert.Equal(t, 10, sum.Skipped)
	assert.Equal(t, 15, sum.Processed)
	assert.Equal(t, 2, sum.Chunks)
	assert.NotEmpty(t, sum.RunID)

	require.Len(t, out.chunks, 2)
	assert.Len(t, out.chunks[0], 10)
	assert.Len(t, out.chunks[1], 5)

	seen := enr.names()
	assert.Len(t, seen, 15)
	for _, name := range seen {
		assert.NotContains(t, done, name)
	}

	// Pauses only between chunks.
	assert.Equal(t, []int{1}, pauser.calls)
}

func TestRun_ChunkOrderPreserved(t *testing.T) {
	all := entities(7)
	out := &memAppender{}

	_, err := New(Options{ChunkSize: 7}, &stubEnricher{delay: time.Millisecond}, nil).Run(context.Background(), all, nil, out)
	require.NoError(t, err)

	require.Len(t, out.chunks, 1)
	for i, rec := range out.chunks[0] {
		assert.Equal(t, all[i].Name, rec.Name)
	}
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	enr := &stubEnricher{delay: 5 * time.Millisecond}
	_, err := New(Options{ChunkSize: 10, ConcurrencyLimit: 3}, enr, nil).Run(context.Background(), entities(10), nil, &memAppender{})
	require.NoError(t, err)
	assert.LessOrEqual(t, enr.peak.Load(), int32(3))
}

func TestRun_TimeoutBecomesAbsentAndRunContinues(t *testing.T) {
	all := entities(3)
	enr := &stubEnricher{miss: map[string]bool{all[1].Name: true}}
	out := &memAppender{}

	sum, err := New(Options{ChunkSize: 2, PersistEmpty: true}, enr, nil).Run(context.Background(), all, nil, out)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 2, sum.Found)
	assert.Equal(t, 1, sum.Missed)
	assert.Equal(t, 3, sum.Persisted)

	require.Len(t, out.chunks, 2)
	missed := out.chunks[0][1]
	assert.Equal(t, all[1].Name, missed.Name)
	assert.Nil(t, missed.Rating)
	assert.Nil(t, missed.EmployeeCountText)
}

func TestRun_SkipEmptyPolicy(t *testing.T) {
	all := entities(4)
	enr := &stubEnricher{miss: map[string]bool{all[0].Name: true, all[3].Name: true}}
	out := &memAppender{}

	sum, err := New(Options{ChunkSize: 4, PersistEmpty: false}, enr, nil).Run(context.Background(), all, nil, out)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 2, sum.Persisted)
	require.Len(t, out.chunks, 1)
	assert.Len(t, out.chunks[0], 2)
}

func TestRun_CountsBlocked(t *testing.T) {
	all := entities(3)
	enr := &stubEnricher{blocked: map[string]bool{all[0].Name: true, all[2].Name: true}}

	sum, err := New(Options{ChunkSize: 3, PersistEmpty: true}, enr, nil).Run(context.Background(), all, nil, &memAppender{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Blocked)
	assert.Equal(t, 2, sum.Missed)
}

func TestRun_WriteFailureIsFatal(t *testing.T) {
	enr := &stubEnricher{}
	out := &memAppender{failAt: 2}
	pauser := &countingPauser{}

	sum, err := New(Options{ChunkSize: 5}, enr, pauser).Run(context.Background(), entities(15), nil, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Len(t, out.chunks, 1)
	assert.Equal(t, 1, sum.Chunks)
	assert.Equal(t, 5, sum.Processed)
	// The third chunk never started.
	assert.Len(t, enr.names(), 10)
}

func TestRun_CancelStopsAtChunkBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := &memAppender{}
	failPause := pauserFunc(func(context.Context, int, int) error {
		t.Fatal("pause reached after cancel")
		return nil
	})

	enr := &cancelOnFirst{stubEnricher: &stubEnricher{}, cancel: cancel}
	sum, err := New(Options{ChunkSize: 2}, enr, failPause).Run(ctx, entities(6), nil, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), context.Canceled.Error())

	// The chunk in flight finished and was written.
	require.Len(t, out.chunks, 1)
	assert.Len(t, out.chunks[0], 2)
	assert.Equal(t, 2, sum.Processed)
}

func TestRun_NothingRemaining(t *testing.T) {
	all := entities(3)
	done := map[string]struct{}{}
	for _, e := range all {
		done[e.Name] = struct{}{}
	}
	out := &memAppender{}
	enr := &stubEnricher{}

	sum, err := New(Options{ChunkSize: 2}, enr, nil).Run(context.Background(), all, done, out)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Processed)
	assert.Empty(t, out.chunks)
	assert.Empty(t, enr.names())
}

func TestRemaining(t *testing.T) {
	in := []model.Entity{{Name: "Acme"}, {Name: "Zeta"}, {Name: "Acme"}, {Name: "Beta"}}
	got := Remaining(in, map[string]struct{}{"Zeta": {}})
	assert.Equal(t, []model.Entity{{Name: "Acme"}, {Name: "Beta"}}, got)
}

func TestProcess_RerunNeverDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	all := entities(12)

	// First run is interrupted by a cancel after its first chunk.
	ctx, cancel := context.WithCancel(context.Background())
	first := &cancelOnFirst{stubEnricher: &stubEnricher{}, cancel: cancel}
	_, err := New(Options{ChunkSize: 5, PersistEmpty: true}, first, nil).Process(ctx, all, path, dataset.SchemaDetails)
	require.Error(t, err)
	require.Contains(t, err.Error(), context.Canceled.Error())

	second := &stubEnricher{}
	sum, err := New(Options{ChunkSize: 5, PersistEmpty: true}, second, nil).Process(context.Background(), all, path, dataset.SchemaDetails)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Skipped)
	assert.Equal(t, 7, sum.Processed)

	third := &stubEnricher{}
	sum, err = New(Options{ChunkSize: 5, PersistEmpty: true}, third, nil).Process(context.Background(), all, path, dataset.SchemaDetails)
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
	assert.Empty(t, third.names())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "Company Name,Glassdoor Rating,Employee Count", lines[0])
	assert.Len(t, lines, 13)

	counts := make(map[string]int)
	for row, err := range dataset.Rows(path) {
		require.NoError(t, err)
		counts[row.Name]++
	}
	assert.Len(t, counts, 12)
	for name, n := range counts {
		assert.Equal(t, 1, n, name)
	}
}

func TestProcess_CreatesHeaderForEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := New(Options{ChunkSize: 5}, &stubEnricher{}, nil).Process(context.Background(), nil, path, dataset.SchemaDetails)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Company Name,Glassdoor Rating,Employee Count\n", string(b))
}

type pauserFunc func(ctx context.Context, done, total int) error

func (f pauserFunc) Pause(ctx context.Context, done, total int) error { return f(ctx, done, total) }

// cancelOnFirst cancels the run's context during its first lookup.
type cancelOnFirst struct {
	*stubEnricher
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelOnFirst) Enrich(ctx context.Context, e model.Entity) model.EnrichmentRecord {
	c.once.Do(c.cancel)
	return c.stubEnricher.Enrich(ctx, e)
}
