// Package jsonlsource implements source.Source over a directory of JSONL
// fixture files (spec §6's [ADDED] concrete Source interface), used by the
// CLI's --source-dir flag and by package tests for offline/local runs.
package jsonlsource

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/valyala/fastjson"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/source"
)

// jsonlSource loads documents.jsonl, annotations.jsonl, and
// dependencies.jsonl from a directory at construction time. Fixtures are
// expected to be small enough for this (test corpora, local dry runs);
// it is not meant for production-scale ingestion.
type jsonlSource struct {
	documents    []source.DocumentRow
	annotations  []source.AnnotationRow
	dependencies []source.DependencyRow
}

// New reads documents.jsonl, annotations.jsonl, and dependencies.jsonl
// from dir. Any of the three files may be absent, yielding an empty
// stream for it.
func New(dir string) (source.Source, error) {
	s := &jsonlSource{}
	var err error

	if s.documents, err = readDocuments(filepath.Join(dir, "documents.jsonl")); err != nil {
		return nil, err
	}
	if s.annotations, err = readAnnotations(filepath.Join(dir, "annotations.jsonl")); err != nil {
		return nil, err
	}
	if s.dependencies, err = readDependencies(filepath.Join(dir, "dependencies.jsonl")); err != nil {
		return nil, err
	}
	return s, nil
}

// eachLine parses path line by line with a single reused fastjson.Parser,
// handing fn the freshly-parsed *fastjson.Value. fn must not retain v
// past its call, since the next ParseBytes invalidates it.
func eachLine(path string, fn func(v *fastjson.Value) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Wrap(err, errs.KindSource, "opening "+path)
	}
	defer f.Close()

	var p fastjson.Parser
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		v, err := p.ParseBytes(line)
		if err != nil {
			return errs.Wrap(err, errs.KindSource, "parsing "+path)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errs.Wrap(err, errs.KindSource, "scanning "+path)
	}
	return nil
}

func readDocuments(path string) ([]source.DocumentRow, error) {
	var rows []source.DocumentRow
	err := eachLine(path, func(v *fastjson.Value) error {
		rows = append(rows, source.DocumentRow{
			DocumentID: int32(v.GetInt("document_id")),
			Timestamp:  string(v.GetStringBytes("timestamp")),
		})
		return nil
	})
	return rows, err
}

func readAnnotations(path string) ([]source.AnnotationRow, error) {
	var rows []source.AnnotationRow
	err := eachLine(path, func(v *fastjson.Value) error {
		rows = append(rows, source.AnnotationRow{
			DocumentID:    int32(v.GetInt("document_id")),
			SentenceID:    int32(v.GetInt("sentence_id")),
			BeginChar:     int32(v.GetInt("begin_char")),
			EndChar:       int32(v.GetInt("end_char")),
			Token:         string(v.GetStringBytes("token")),
			Lemma:         string(v.GetStringBytes("lemma")),
			POS:           string(v.GetStringBytes("pos")),
			NER:           string(v.GetStringBytes("ner")),
			NormalizedNER: string(v.GetStringBytes("normalized_ner")),
			AnnotationID:  int32(v.GetInt("annotation_id")),
		})
		return nil
	})
	return rows, err
}

func readDependencies(path string) ([]source.DependencyRow, error) {
	var rows []source.DependencyRow
	err := eachLine(path, func(v *fastjson.Value) error {
		rows = append(rows, source.DependencyRow{
			DocumentID:     int32(v.GetInt("document_id")),
			SentenceID:     int32(v.GetInt("sentence_id")),
			HeadBeginChar:  int32(v.GetInt("head_begin_char")),
			HeadEndChar:    int32(v.GetInt("head_end_char")),
			DepBeginChar:   int32(v.GetInt("dep_begin_char")),
			DepEndChar:     int32(v.GetInt("dep_end_char")),
			HeadToken:      string(v.GetStringBytes("head_token")),
			DependentToken: string(v.GetStringBytes("dependent_token")),
			Relation:       string(v.GetStringBytes("relation")),
		})
		return nil
	})
	return rows, err
}

type documentCursor struct {
	rows []source.DocumentRow
	pos  int
}

func (c *documentCursor) Next(ctx context.Context) (source.DocumentRow, bool, error) {
	if err := ctx.Err(); err != nil {
		return source.DocumentRow{}, false, err
	}
	if c.pos >= len(c.rows) {
		return source.DocumentRow{}, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *documentCursor) Close() error { return nil }

func (s *jsonlSource) Documents(ctx context.Context) (source.Cursor[source.DocumentRow], error) {
	return &documentCursor{rows: s.documents}, nil
}

func (s *jsonlSource) Annotations(ctx context.Context, offset, limit int) ([]source.AnnotationRow, error) {
	if offset >= len(s.annotations) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.annotations) {
		end = len(s.annotations)
	}
	return s.annotations[offset:end], nil
}

func (s *jsonlSource) Dependencies(ctx context.Context, offset, limit int) ([]source.DependencyRow, error) {
	if offset >= len(s.dependencies) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.dependencies) {
		end = len(s.dependencies)
	}
	return s.dependencies[offset:end], nil
}

func (s *jsonlSource) Close() error { return nil }
