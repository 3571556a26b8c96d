// Package pipeline implements the Streaming Pipeline (spec §4.F): a
// bounded-memory fetch -> extract -> accumulate -> spill loop followed by
// an external merge and a read-merge-write load into the Store.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/mathutil"
	"github.com/textcorpus/posindex/internal/position"
	"github.com/textcorpus/posindex/internal/spill"
	"github.com/textcorpus/posindex/internal/store"
)

// Fetcher yields successive batches of raw source rows. offset is the
// running count of rows already consumed; count is how many rows this
// batch actually contains (count == 0 signals exhaustion).
type Fetcher[B any] interface {
	Fetch(ctx context.Context, offset, batchSize int) (batch B, count int, err error)
}

// Extractor turns one fetched batch into a multimap of key -> Positions,
// folding each emitted position into acc. Implementations should call
// acc.Add once per (key, Position) pair; extraction failures for a single
// tuple must be logged and skipped rather than returned (spec §4.F error
// policy), so Extract itself only returns hard, batch-fatal errors.
type Extractor[B any] interface {
	Extract(ctx context.Context, batch B, acc *Accumulator) error
}

// Options configures one pipeline run.
type Options struct {
	BatchSize        int
	Threads          int
	StoreBatchSize   int
	FanIn            int
	Dedup            position.DedupMode
	Serialize        position.SerializeOptions
	TaskTimeout      time.Duration
	ScratchDir       string
	DocBitmapSidecar bool
}

// sidecarSuffix names the doc-id bitmap sidecar key, appended to a key's
// main Store entry (SPEC_FULL.md's "[ADDED] Doc-id bitmap sidecar
// encoding"): a derived RoaringBitmap of every document_id present in
// that key's PositionList, rebuilt whenever the list is rewritten.
const sidecarSuffix = "\x00bm"

// encodeDocBitmap builds the sidecar bitmap for list's document ids.
func encodeDocBitmap(list *position.PositionList) ([]byte, error) {
	bm := roaring.New()
	for _, id := range list.DocumentIDs() {
		bm.Add(uint32(id))
	}
	return bm.ToBytes()
}

// Stats holds the Progress/Metrics counters (spec §4.J); safe for
// concurrent updates from worker goroutines.
type Stats struct {
	BatchesFetched    atomic.Int64
	TuplesExtracted   atomic.Int64
	TuplesSkipped     atomic.Int64
	BytesSpilled      atomic.Int64
	UniqueKeysWritten atomic.Int64
	MergePasses       atomic.Int64
	Started           time.Time
	Finished          time.Time
}

// StatsSnapshot is a plain-value copy of Stats, safe to pass around and
// render (e.g. in internal/metrics) without touching the live atomics.
type StatsSnapshot struct {
	BatchesFetched    int64
	TuplesExtracted   int64
	TuplesSkipped     int64
	BytesSpilled      int64
	UniqueKeysWritten int64
	MergePasses       int64
	Started           time.Time
	Finished          time.Time
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		BatchesFetched:    s.BatchesFetched.Load(),
		TuplesExtracted:   s.TuplesExtracted.Load(),
		TuplesSkipped:     s.TuplesSkipped.Load(),
		BytesSpilled:      s.BytesSpilled.Load(),
		UniqueKeysWritten: s.UniqueKeysWritten.Load(),
		MergePasses:       s.MergePasses.Load(),
		Started:           s.Started,
		Finished:          s.Finished,
	}
}

// Pipeline drives one flavor's build against a Fetcher/Extractor pair and
// a destination Store.
type Pipeline[B any] struct {
	log       *logging.Logger
	fetcher   Fetcher[B]
	extractor Extractor[B]
	store     store.Store
	opts      Options

	sm    stateMachine
	Stats Stats
}

// New constructs a Pipeline. Options zero values are replaced with spec
// defaults (batch_size left to the caller's Config; store batch 10000,
// fan-in 10, 1h task timeout).
func New[B any](log *logging.Logger, fetcher Fetcher[B], extractor Extractor[B], st store.Store, opts Options) *Pipeline[B] {
	if opts.StoreBatchSize <= 0 {
		opts.StoreBatchSize = 10000
	}
	if opts.FanIn <= 0 {
		opts.FanIn = spill.DefaultFanIn
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = time.Hour
	}
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = "."
	}
	return &Pipeline[B]{log: log, fetcher: fetcher, extractor: extractor, store: st, opts: opts}
}

// State returns the current state-machine node.
func (p *Pipeline[B]) State() State { return p.sm.get() }

// Run executes the full STREAMING -> MERGING -> LOADING sequence,
// transitioning to DONE on success or ABORTED on any fatal error.
func (p *Pipeline[B]) Run(ctx context.Context) error {
	p.Stats.Started = time.Now()
	p.sm.set(StateStreaming)

	wd, err := newWorkDir(p.opts.ScratchDir, p.log)
	if err != nil {
		p.sm.set(StateAborted)
		return err
	}
	defer wd.close()

	spillPaths, err := p.stream(ctx, wd)
	if err != nil {
		p.sm.set(StateAborted)
		return err
	}
	if len(spillPaths) == 0 {
		p.sm.set(StateDone)
		p.Stats.Finished = time.Now()
		return nil
	}

	p.sm.set(StateMerging)
	merger, cleanup, passes, err := spill.MultiPass(p.log, wd.path, spillPaths, p.opts.FanIn, p.opts.Dedup, p.opts.Serialize)
	if err != nil {
		p.sm.set(StateAborted)
		return err
	}
	defer cleanup()
	p.Stats.MergePasses.Add(int64(passes))

	p.sm.set(StateLoading)
	if err := p.load(ctx, merger); err != nil {
		p.sm.set(StateAborted)
		return err
	}

	p.sm.set(StateDone)
	p.Stats.Finished = time.Now()
	return nil
}

// stream runs the fetch/extract/accumulate/spill loop, fanning batches
// out across a bounded worker pool, and returns the resulting spill file
// paths (ascending-key-sorted individually, unordered relative to each
// other -- the external merge restores total order).
func (p *Pipeline[B]) stream(ctx context.Context, wd *workDir) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Threads)

	var paths []string
	var pathsMu sync.Mutex
	offset := 0
	batchNum := 0

	var cancelled error
	for {
		if err := gctx.Err(); err != nil {
			cancelled = errs.Wrap(err, errs.KindCancelled, "stream cancelled before fetching next batch")
			break
		}
		batch, n, err := p.fetcher.Fetch(ctx, offset, p.opts.BatchSize)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindSource, "fetching batch")
		}
		if n == 0 {
			break
		}
		offset += n
		p.Stats.BatchesFetched.Add(1)
		batchNum++
		bn := batchNum
		b := batch

		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, p.opts.TaskTimeout)
			defer cancel()

			acc := NewAccumulator(p.opts.Dedup)
			if err := p.extractor.Extract(taskCtx, b, acc); err != nil {
				return errs.Wrap(err, errs.KindExtract, fmt.Sprintf("extracting batch %d", bn))
			}

			path := filepath.Join(wd.path, fmt.Sprintf("batch-%06d.spill", bn))
			w, err := spill.Create(path)
			if err != nil {
				return err
			}
			var tupleCount uint64
			var writeErr error
			acc.Ascend(func(key string, list *position.PositionList) bool {
				if err := w.WriteRecord(key, list, p.opts.Serialize); err != nil {
					writeErr = err
					return false
				}
				sum, overflow := mathutil.SafeAdd(tupleCount, uint64(list.Len()))
				if overflow {
					writeErr = errs.New(errs.KindExtract, fmt.Sprintf("tuple count overflow accumulating batch %d", bn))
					return false
				}
				tupleCount = sum
				return true
			})
			if writeErr != nil {
				w.Close()
				return writeErr
			}
			if err := w.Close(); err != nil {
				return err
			}
			p.Stats.TuplesExtracted.Add(int64(tupleCount))
			wd.register(path)

			pathsMu.Lock()
			paths = append(paths, path)
			pathsMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if cancelled != nil {
		return nil, cancelled
	}
	return paths, nil
}

// load drains merger in ascending key order, read-merge-writes each group
// against any pre-existing store value, and flushes a write_batch every
// StoreBatchSize keys (plus a final partial batch), per spec §4.F.
func (p *Pipeline[B]) load(ctx context.Context, merger *spill.Merger) error {
	var batch []spill.Group
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, errs.KindCancelled, "load cancelled before store batch write")
		}
		var bytesInBatch uint64
		err := p.store.WriteBatch(ctx, func(b store.WriteBatch) error {
			for _, g := range batch {
				merged, err := p.readMerge(ctx, g)
				if err != nil {
					return err
				}
				data, err := merged.Serialize(p.opts.Serialize)
				if err != nil {
					return errs.Wrap(err, errs.KindCorruptPayload, fmt.Sprintf("serializing merged value for key %q", g.Key))
				}
				b.Put([]byte(g.Key), data)
				sum, overflow := mathutil.SafeAdd(bytesInBatch, uint64(len(data)))
				if overflow {
					return errs.New(errs.KindCorruptPayload, fmt.Sprintf("bytes-spilled counter overflow at key %q", g.Key))
				}
				bytesInBatch = sum

				if p.opts.DocBitmapSidecar {
					bm, err := encodeDocBitmap(merged)
					if err != nil {
						return errs.Wrap(err, errs.KindCorruptPayload, fmt.Sprintf("encoding doc-id bitmap for key %q", g.Key))
					}
					b.Put([]byte(g.Key+sidecarSuffix), bm)
				}
			}
			return nil
		})
		if err != nil {
			return errs.Wrap(err, errs.KindStore, "flushing write batch")
		}
		p.Stats.BytesSpilled.Add(int64(bytesInBatch))
		p.Stats.UniqueKeysWritten.Add(int64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, errs.KindCancelled, "load cancelled while draining external merge")
		}
		g, ok, err := merger.Next()
		if err != nil {
			return errs.Wrap(err, errs.KindSpill, "draining external merge")
		}
		if !ok {
			break
		}
		batch = append(batch, g)
		if len(batch) >= p.opts.StoreBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// readMerge implements the idempotent read-merge-write contract: any
// value already present in the store for g.Key is deserialized and
// merged with the newly accumulated list before being written back.
func (p *Pipeline[B]) readMerge(ctx context.Context, g spill.Group) (*position.PositionList, error) {
	existing, found, err := p.store.Get(ctx, []byte(g.Key))
	if err != nil {
		return nil, errs.Wrap(err, errs.KindStore, fmt.Sprintf("reading existing value for key %q", g.Key))
	}
	if !found {
		return g.List, nil
	}
	prior, err := position.Deserialize(existing)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCorruptPayload, fmt.Sprintf("deserializing existing value for key %q", g.Key))
	}
	return prior.Merge(g.List, p.opts.Dedup), nil
}
