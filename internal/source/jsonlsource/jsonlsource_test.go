package jsonlsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadsAllThreeStreams(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "documents.jsonl", `{"document_id":1,"timestamp":"2020-01-02"}
{"document_id":2,"timestamp":"2020-01-03T00:00:00Z"}
`)
	writeFixture(t, dir, "annotations.jsonl", `{"document_id":1,"sentence_id":0,"begin_char":0,"end_char":3,"token":"The","lemma":"the","pos":"DT","ner":"O","normalized_ner":""}
{"document_id":1,"sentence_id":0,"begin_char":4,"end_char":8,"token":"Quick","lemma":"quick","pos":"JJ","ner":"O","normalized_ner":""}
`)
	writeFixture(t, dir, "dependencies.jsonl", `{"document_id":1,"sentence_id":0,"head_begin_char":0,"head_end_char":3,"dep_begin_char":4,"dep_end_char":8,"head_token":"The","dependent_token":"Quick","relation":"det"}
`)

	src, err := New(dir)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	cur, err := src.Documents(ctx)
	require.NoError(t, err)
	var docs int
	for {
		_, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		docs++
	}
	require.Equal(t, 2, docs)

	ann, err := src.Annotations(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, ann, 2)
	require.Equal(t, "The", ann[0].Token)

	deps, err := src.Dependencies(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, "det", deps[0].Relation)
}

func TestMissingFilesYieldEmptyStreams(t *testing.T) {
	dir := t.TempDir()
	src, err := New(dir)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	cur, err := src.Documents(ctx)
	require.NoError(t, err)
	_, ok, err := cur.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ann, err := src.Annotations(ctx, 0, 10)
	require.NoError(t, err)
	require.Empty(t, ann)
}

func TestAnnotationsPaginates(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "annotations.jsonl", `{"document_id":1,"sentence_id":0,"begin_char":0,"end_char":1,"token":"a"}
{"document_id":1,"sentence_id":0,"begin_char":1,"end_char":2,"token":"b"}
{"document_id":1,"sentence_id":0,"begin_char":2,"end_char":3,"token":"c"}
`)
	src, err := New(dir)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	first, err := src.Annotations(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := src.Annotations(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "c", second[0].Token)

	third, err := src.Annotations(ctx, 3, 2)
	require.NoError(t, err)
	require.Empty(t, third)
}
