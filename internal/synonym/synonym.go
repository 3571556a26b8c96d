// Package synonym implements the bidirectional string<->int32 Synonym
// Table (spec §4.C): per annotation kind, a compact integer id for each
// repeated string value, persisted per kind and append-only across runs.
package synonym

import (
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/textcorpus/posindex/internal/errs"
)

// Kind is an annotation kind with its own id range.
type Kind string

const (
	KindDate       Kind = "DATE"
	KindNER        Kind = "NER"
	KindPOS        Kind = "POS"
	KindDependency Kind = "DEPENDENCY"
)

// Offsets are the disjoint id-range starting points per kind (spec §3),
// so a decoder can infer the kind from a bare id.
var Offsets = map[Kind]int32{
	KindDate:       1,
	KindNER:        10000,
	KindPOS:        20000,
	KindDependency: 30000,
}

var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Table is one kind's value<->id mapping, mutated during a run and
// persisted on Close if modified.
type Table struct {
	mu       sync.Mutex
	kind     Kind
	path     string
	byValue  map[string]int32
	byID     map[int32]string
	nextID   int32
	modified bool
}

// Open loads kind's table from path if it exists, seeding nextID at
// Offsets[kind] (or one past the highest loaded id, if higher).
func Open(kind Kind, path string) (*Table, error) {
	t := &Table{
		kind:    kind,
		path:    path,
		byValue: make(map[string]int32),
		byID:    make(map[int32]string),
		nextID:  Offsets[kind],
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

type fileFormat struct {
	NextID  int32            `json:"next_id"`
	Entries map[string]int32 `json:"entries"`
}

func (t *Table) load() error {
	data, err := mmapRead(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(err, errs.KindStore, fmt.Sprintf("reading synonym table %s", t.path))
	}
	if len(data) == 0 {
		return nil
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return errs.Wrap(err, errs.KindCorruptPayload, fmt.Sprintf("parsing synonym table %s", t.path))
	}
	for v, id := range ff.Entries {
		t.byValue[v] = id
		t.byID[id] = v
	}
	if ff.NextID > t.nextID {
		t.nextID = ff.NextID
	}
	maxLoaded := int32(-1)
	for id := range t.byID {
		if id > maxLoaded {
			maxLoaded = id
		}
	}
	if maxLoaded >= 0 && maxLoaded+1 > t.nextID {
		t.nextID = maxLoaded + 1
	}
	return nil
}

// GetOrCreate returns value's id within the table's kind, assigning a new
// one if value has not been seen before. Idempotent per value: concurrent
// callers observe the same id.
func (t *Table) GetOrCreate(value string) (int32, error) {
	if t.kind == KindDate && !dateRE.MatchString(value) {
		return 0, errs.New(errs.KindExtract, fmt.Sprintf("invalid date value %q for DATE synonym kind", value))
	}
	if t.kind == KindDate {
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return 0, errs.Wrap(err, errs.KindExtract, fmt.Sprintf("unparseable date value %q", value))
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byValue[value]; ok {
		return id, nil
	}
	id := t.nextID
	t.nextID++
	t.byValue[value] = id
	t.byID[id] = value
	t.modified = true
	return id, nil
}

// Lookup is a pure read of id's original value.
func (t *Table) Lookup(id int32) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.byID[id]
	return v, ok
}

// Size returns the number of distinct values held.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byValue)
}

// Validate scans the table for bijection violations.
func (t *Table) Validate() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var problems []string
	for v, id := range t.byValue {
		if got, ok := t.byID[id]; !ok || got != v {
			problems = append(problems, fmt.Sprintf("value %q -> id %d does not round-trip (lookup gave %q, ok=%v)", v, id, got, ok))
		}
	}
	return problems
}

// Close persists the table atomically (temp file + rename) if modified.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.modified {
		return nil
	}
	ff := fileFormat{NextID: t.nextID, Entries: t.byValue}
	data, err := json.Marshal(ff)
	if err != nil {
		return errs.Wrap(err, errs.KindStore, "marshalling synonym table")
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(err, errs.KindStore, "writing temp synonym table")
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return errs.Wrap(err, errs.KindStore, "renaming synonym table into place")
	}
	t.modified = false
	return nil
}
