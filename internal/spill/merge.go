package spill

import (
	"bufio"
	"container/heap"
	"fmt"
	"os"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/position"
)

// Group is one fused, key-complete record emitted by a merge.
type Group struct {
	Key  string
	List *position.PositionList
}

// reader pulls lines lazily from one spill file, skipping malformed ones.
type reader struct {
	path    string
	f       *os.File
	scanner *bufio.Scanner
	key     string
	value   string
	done    bool
}

func openReader(log *logging.Logger, path string) (*reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindSpill, fmt.Sprintf("opening spill file %s for merge", path))
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	r := &reader{path: path, f: f, scanner: sc}
	if err := r.advance(log); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// advance reads the next well-formed line into key/value, skipping any
// malformed lines (spec §4.D: tolerate and warn rather than abort).
func (r *reader) advance(log *logging.Logger) error {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := parseLine(log, r.path, line)
		if !ok {
			continue
		}
		r.key, r.value = key, value
		return nil
	}
	if err := r.scanner.Err(); err != nil {
		return errs.Wrap(err, errs.KindSpill, fmt.Sprintf("scanning spill file %s", r.path))
	}
	r.done = true
	return nil
}

func (r *reader) close() error {
	return r.f.Close()
}

// readerHeap orders live readers by current key, breaking ties by reader
// index for determinism across equal keys drawn from different spills.
type readerHeap struct {
	readers []*reader
	idx     []int
}

func (h *readerHeap) Len() int { return len(h.idx) }
func (h *readerHeap) Less(i, j int) bool {
	a, b := h.readers[h.idx[i]], h.readers[h.idx[j]]
	if a.key != b.key {
		return a.key < b.key
	}
	return h.idx[i] < h.idx[j]
}
func (h *readerHeap) Swap(i, j int) { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *readerHeap) Push(x any)    { h.idx = append(h.idx, x.(int)) }
func (h *readerHeap) Pop() any {
	n := len(h.idx)
	v := h.idx[n-1]
	h.idx = h.idx[:n-1]
	return v
}

// Merger performs a K-way merge over a fixed set of spill files (K bounded
// by the caller to the configured fan-in), yielding fully fused groups in
// ascending key order. Callers that need to merge more files than the
// fan-in allow must run multiple passes (see MultiPass).
type Merger struct {
	log     *logging.Logger
	dedup   position.DedupMode
	readers []*reader
	h       *readerHeap
}

// NewMerger opens a reader per path and primes the heap. paths should
// number at most the configured fan-in.
func NewMerger(log *logging.Logger, paths []string, dedup position.DedupMode) (*Merger, error) {
	m := &Merger{log: log, dedup: dedup}
	m.h = &readerHeap{}
	for _, p := range paths {
		r, err := openReader(log, p)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.readers = append(m.readers, r)
	}
	for i, r := range m.readers {
		if !r.done {
			m.h.readers = m.readers
			heap.Push(m.h, i)
		}
	}
	return m, nil
}

// Next pops the smallest key across all live readers, fuses every record
// sharing that key, and advances the consumed readers. Returns ok=false
// once every reader is exhausted.
func (m *Merger) Next() (Group, bool, error) {
	if m.h.Len() == 0 {
		return Group{}, false, nil
	}
	topIdx := m.h.idx[0]
	key := m.readers[topIdx].key
	merged := position.NewList()

	for m.h.Len() > 0 && m.readers[m.h.idx[0]].key == key {
		i := heap.Pop(m.h).(int)
		r := m.readers[i]
		list, err := decodeRecord(r.key, r.value)
		if err != nil {
			return Group{}, false, err
		}
		merged = merged.Merge(list, m.dedup)
		if err := r.advance(m.log); err != nil {
			return Group{}, false, err
		}
		if !r.done {
			heap.Push(m.h, i)
		}
	}
	return Group{Key: key, List: merged}, true, nil
}

// Close releases every open reader.
func (m *Merger) Close() error {
	var firstErr error
	for _, r := range m.readers {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
