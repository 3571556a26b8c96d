package source

import (
	"context"
	"time"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/extract"
)

// sentenceKey identifies one (document, sentence) group.
type sentenceKey struct {
	doc int32
	sen int32
}

// SentenceFetcher adapts a Source into a pipeline.Fetcher[extract.Batch]:
// it pages annotation and dependency rows, groups consecutive rows
// sharing (document_id, sentence_id) into extract.Sentence values, and
// attaches each sentence's document date. Rows arrive in stable
// (document_id, sentence_id, begin_char) order (spec §6), so a sentence
// is complete as soon as a row with a different key is seen.
//
// SentenceFetcher is stateful and sequential-only: it must be driven by
// a single caller advancing strictly forward (the pipeline's stream
// stage does this), not by arbitrary (offset, batchSize) pairs.
type SentenceFetcher struct {
	src Source

	dates map[int32]int64

	annOffset int
	depOffset int

	pendingAnn   []AnnotationRow
	pendingDep   []DependencyRow
	annExhausted bool
	depExhausted bool

	chunkRows int
}

// NewSentenceFetcher loads the documents stream into a date lookup and
// returns a fetcher ready to page annotations/dependencies in chunks of
// chunkRows rows at a time (a chunk may span multiple sentences; partial
// trailing sentences are buffered across Fetch calls).
func NewSentenceFetcher(ctx context.Context, src Source, chunkRows int) (*SentenceFetcher, error) {
	if chunkRows <= 0 {
		chunkRows = 4096
	}
	dates, err := loadDates(ctx, src)
	if err != nil {
		return nil, err
	}
	return &SentenceFetcher{src: src, dates: dates, chunkRows: chunkRows}, nil
}

func loadDates(ctx context.Context, src Source) (map[int32]int64, error) {
	cur, err := src.Documents(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindSource, "opening documents stream")
	}
	defer cur.Close()

	dates := make(map[int32]int64)
	for {
		row, ok, err := cur.Next(ctx)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindSource, "reading document row")
		}
		if !ok {
			break
		}
		days, err := parseDays(row.Timestamp)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindSource, "parsing document timestamp")
		}
		dates[row.DocumentID] = days
	}
	return dates, nil
}

func parseDays(ts string) (int64, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Unix() / 86400, nil
		}
	}
	return 0, errs.New(errs.KindSource, "unrecognized timestamp format: "+ts)
}

// Fetch implements pipeline.Fetcher[extract.Batch]. offset is ignored;
// the fetcher tracks its own forward cursor over the underlying rows.
func (f *SentenceFetcher) Fetch(ctx context.Context, _, batchSize int) (extract.Batch, int, error) {
	if err := f.fillAnnotations(ctx); err != nil {
		return extract.Batch{}, 0, err
	}
	if err := f.fillDependencies(ctx); err != nil {
		return extract.Batch{}, 0, err
	}
	if len(f.pendingAnn) == 0 {
		return extract.Batch{}, 0, nil
	}

	depsByKey := make(map[sentenceKey][]DependencyRow)
	for _, d := range f.pendingDep {
		k := sentenceKey{d.DocumentID, d.SentenceID}
		depsByKey[k] = append(depsByKey[k], d)
	}

	var sentences []extract.Sentence
	consumed := 0
	i := 0
	for i < len(f.pendingAnn) && len(sentences) < batchSize {
		k := sentenceKey{f.pendingAnn[i].DocumentID, f.pendingAnn[i].SentenceID}
		j := i
		for j < len(f.pendingAnn) && (sentenceKey{f.pendingAnn[j].DocumentID, f.pendingAnn[j].SentenceID}) == k {
			j++
		}
		// Only emit this group if we know it's complete: either more
		// annotations follow with a different key, or annotations are
		// exhausted entirely.
		if j == len(f.pendingAnn) && !f.annExhausted {
			break
		}
		sentences = append(sentences, f.buildSentence(k, f.pendingAnn[i:j], depsByKey[k]))
		consumed += (j - i)
		i = j
	}
	if len(sentences) == 0 {
		// A single sentence exceeds the chunk window; grow it until it fits.
		f.chunkRows *= 2
		return f.Fetch(ctx, 0, batchSize)
	}

	f.pendingAnn = f.pendingAnn[i:]
	f.dropConsumedDependencies(sentences)
	return extract.Batch{Sentences: sentences}, consumed, nil
}

func (f *SentenceFetcher) buildSentence(k sentenceKey, ann []AnnotationRow, deps []DependencyRow) extract.Sentence {
	date := f.dates[k.doc]
	tokens := make([]extract.Token, len(ann))
	for i, a := range ann {
		tokens[i] = extract.Token{
			DocumentID:    a.DocumentID,
			SentenceID:    a.SentenceID,
			BeginChar:     a.BeginChar,
			EndChar:       a.EndChar,
			Text:          a.Token,
			Lemma:         a.Lemma,
			POS:           a.POS,
			NER:           a.NER,
			NormalizedNER: a.NormalizedNER,
			AnnotationID:  a.AnnotationID,
			Date:          date,
		}
	}
	edges := make([]extract.Dependency, len(deps))
	for i, d := range deps {
		edges[i] = extract.Dependency{
			DocumentID:     d.DocumentID,
			SentenceID:     d.SentenceID,
			HeadBeginChar:  d.HeadBeginChar,
			HeadEndChar:    d.HeadEndChar,
			DepBeginChar:   d.DepBeginChar,
			DepEndChar:     d.DepEndChar,
			HeadToken:      d.HeadToken,
			DependentToken: d.DependentToken,
			Relation:       d.Relation,
			Date:           date,
		}
	}
	return extract.Sentence{DocumentID: k.doc, SentenceID: k.sen, Tokens: tokens, Dependencies: edges}
}

func (f *SentenceFetcher) dropConsumedDependencies(sentences []extract.Sentence) {
	consumed := make(map[sentenceKey]bool, len(sentences))
	for _, s := range sentences {
		consumed[sentenceKey{s.DocumentID, s.SentenceID}] = true
	}
	remaining := f.pendingDep[:0]
	for _, d := range f.pendingDep {
		if !consumed[sentenceKey{d.DocumentID, d.SentenceID}] {
			remaining = append(remaining, d)
		}
	}
	f.pendingDep = remaining
}

func (f *SentenceFetcher) fillAnnotations(ctx context.Context) error {
	if f.annExhausted {
		return nil
	}
	rows, err := f.src.Annotations(ctx, f.annOffset, f.chunkRows)
	if err != nil {
		return errs.Wrap(err, errs.KindSource, "fetching annotations")
	}
	f.annOffset += len(rows)
	f.pendingAnn = append(f.pendingAnn, rows...)
	if len(rows) < f.chunkRows {
		f.annExhausted = true
	}
	return nil
}

func (f *SentenceFetcher) fillDependencies(ctx context.Context) error {
	if f.depExhausted {
		return nil
	}
	rows, err := f.src.Dependencies(ctx, f.depOffset, f.chunkRows)
	if err != nil {
		return errs.Wrap(err, errs.KindSource, "fetching dependencies")
	}
	f.depOffset += len(rows)
	f.pendingDep = append(f.pendingDep, rows...)
	if len(rows) < f.chunkRows {
		f.depExhausted = true
	}
	return nil
}
