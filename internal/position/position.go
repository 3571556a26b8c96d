// Package position implements the Position and PositionList data types:
// an immutable occurrence pointer into the corpus, and an ordered,
// deduplicated, compressible collection of them.
package position

import (
	"fmt"
	"sort"
)

// AnnotationKind tags the kind of annotation a stitch Position's extension
// fields refer to.
type AnnotationKind uint8

const (
	KindNone AnnotationKind = iota
	KindDate
	KindNER
	KindPOS
	KindDependency
)

// Position is a pointer (document, sentence, begin, end, date) into the
// corpus. Stitch postings additionally carry a synonym id and annotation
// kind in their extension fields.
type Position struct {
	DocumentID int32
	SentenceID int32
	BeginChar  int32
	EndChar    int32
	Date       int64 // days since the Unix epoch

	HasExtension   bool
	SynonymID      int32
	AnnotationKind AnnotationKind
}

// New validates and constructs a Position.
func New(docID, sentenceID, begin, end int32, date int64) (Position, error) {
	if begin < 0 || begin > end {
		return Position{}, fmt.Errorf("position: invalid span [%d,%d)", begin, end)
	}
	return Position{DocumentID: docID, SentenceID: sentenceID, BeginChar: begin, EndChar: end, Date: date}, nil
}

// WithExtension returns a copy of p carrying a stitch extension.
func (p Position) WithExtension(synonymID int32, kind AnnotationKind) Position {
	p.HasExtension = true
	p.SynonymID = synonymID
	p.AnnotationKind = kind
	return p
}

// compareKey orders Positions by (document, sentence, begin, end).
func compareKey(a, b Position) int {
	if a.DocumentID != b.DocumentID {
		return cmpInt32(a.DocumentID, b.DocumentID)
	}
	if a.SentenceID != b.SentenceID {
		return cmpInt32(a.SentenceID, b.SentenceID)
	}
	if a.BeginChar != b.BeginChar {
		return cmpInt32(a.BeginChar, b.BeginChar)
	}
	return cmpInt32(a.EndChar, b.EndChar)
}

func cmpInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// DedupMode controls whether two near-identical Positions are merged as
// the same occurrence. See spec §3's fuzzy-overlap rule and Open Question
// (a) in DESIGN.md: the rule is configurable per flavor rather than global.
type DedupMode int

const (
	// DedupExact collapses positions only when all four comparator fields
	// match exactly.
	DedupExact DedupMode = iota
	// DedupFuzzy additionally collapses positions sharing
	// (document, sentence) whose begin/end offsets differ by at most 2
	// characters at either end (whitespace/punctuation jitter).
	DedupFuzzy
)

func isDuplicate(a, b Position, mode DedupMode) bool {
	if a.DocumentID == b.DocumentID && a.SentenceID == b.SentenceID &&
		a.BeginChar == b.BeginChar && a.EndChar == b.EndChar {
		return true
	}
	if mode != DedupFuzzy {
		return false
	}
	return a.DocumentID == b.DocumentID && a.SentenceID == b.SentenceID &&
		abs32(a.BeginChar-b.BeginChar) <= 2 && abs32(a.EndChar-b.EndChar) <= 2
}

// sortDedup returns positions sorted ascending by compareKey, with
// duplicates (per mode) collapsed against the nearest preceding kept item.
func sortDedup(positions []Position, mode DedupMode) []Position {
	if len(positions) == 0 {
		return nil
	}
	sorted := make([]Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareKey(sorted[i], sorted[j]) < 0
	})

	kept := make([]Position, 0, len(sorted))
	for _, p := range sorted {
		if len(kept) > 0 && isDuplicate(kept[len(kept)-1], p, mode) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// PositionList is an ordered, deduplicated collection of Positions.
// Mutating methods (Add, Sort, Merge) are not safe for concurrent use;
// Positions() returns a read-only snapshot safe to range over while no
// mutation is in flight.
type PositionList struct {
	positions []Position
}

// NewList builds a PositionList from the given positions without sorting
// or deduplicating them; call Sort before relying on ordering.
func NewList(positions ...Position) *PositionList {
	l := &PositionList{}
	l.positions = append(l.positions, positions...)
	return l
}

// Add appends p to the list.
func (l *PositionList) Add(p Position) {
	l.positions = append(l.positions, p)
}

// Len returns the number of positions currently held (may include
// duplicates if Sort/Merge has not run since the last Add).
func (l *PositionList) Len() int { return len(l.positions) }

// Positions returns a read-only snapshot of the list's contents.
func (l *PositionList) Positions() []Position {
	out := make([]Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Sort orders positions ascending by the comparator and collapses
// duplicates per mode, in place.
func (l *PositionList) Sort(mode DedupMode) {
	l.positions = sortDedup(l.positions, mode)
}

// Merge returns a new PositionList holding the union of l and other,
// sorted and deduplicated per mode. Merge is commutative and associative
// modulo the comparator: merge(a,b) == merge(b,a), and grouping does not
// affect the result set.
func (l *PositionList) Merge(other *PositionList, mode DedupMode) *PositionList {
	combined := make([]Position, 0, l.Len()+other.Len())
	combined = append(combined, l.positions...)
	combined = append(combined, other.positions...)
	return &PositionList{positions: sortDedup(combined, mode)}
}

// DocumentIDs returns the distinct, ascending document ids present in the
// list. Used to build the RoaringBitmap doc-id sidecar.
func (l *PositionList) DocumentIDs() []int32 {
	if len(l.positions) == 0 {
		return nil
	}
	out := make([]int32, 0, 8)
	var last int32
	first := true
	for _, p := range l.positions {
		if first || p.DocumentID != last {
			out = append(out, p.DocumentID)
			last = p.DocumentID
			first = false
		}
	}
	return out
}
