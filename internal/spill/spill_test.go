package spill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/position"
)

func mustPos(t *testing.T, doc, sent, begin, end int32) position.Position {
	t.Helper()
	p, err := position.New(doc, sent, begin, end, 0)
	require.NoError(t, err)
	return p
}

func writeSpill(t *testing.T, dir, name string, records map[string][]position.Position) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := Create(path)
	require.NoError(t, err)

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	// Callers must hand us records already in ascending key order; sort
	// here only because the test fixtures are built from an unordered map.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	for _, k := range keys {
		list := position.NewList(records[k]...)
		list.Sort(position.DedupExact)
		require.NoError(t, w.WriteRecord(k, list, position.SerializeOptions{Codec: position.CodecNone}))
	}
	require.NoError(t, w.Close())
	return path
}

func TestMergerFusesSameKeyAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	log := logging.Nop()

	s1 := writeSpill(t, dir, "a.spill", map[string][]position.Position{
		"apple":  {mustPos(t, 1, 0, 0, 5)},
		"banana": {mustPos(t, 2, 0, 0, 6)},
	})
	s2 := writeSpill(t, dir, "b.spill", map[string][]position.Position{
		"apple": {mustPos(t, 3, 0, 0, 5)},
		"cherry": {
			mustPos(t, 4, 0, 0, 6),
		},
	})

	merger, err := NewMerger(log, []string{s1, s2}, position.DedupExact)
	require.NoError(t, err)
	defer merger.Close()

	var got []string
	for {
		g, ok, err := merger.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, g.Key)
		if g.Key == "apple" {
			require.Equal(t, 2, g.List.Len())
		}
	}
	require.Equal(t, []string{"apple", "banana", "cherry"}, got)
}

func TestMultiPassReducesManyRunsToOne(t *testing.T) {
	dir := t.TempDir()
	log := logging.Nop()

	var spills []string
	for i := 0; i < 25; i++ {
		key := string(rune('a' + (i % 5)))
		spills = append(spills, writeSpill(t, dir, keyName(i), map[string][]position.Position{
			key: {mustPos(t, int32(i), 0, 0, 3)},
		}))
	}

	merger, cleanup, passes, err := MultiPass(log, dir, spills, 4, position.DedupExact, position.SerializeOptions{Codec: position.CodecNone})
	require.NoError(t, err)
	defer cleanup()
	require.Greater(t, passes, 0, "25 runs at fan-in 4 must take at least one intermediate pass")

	total := 0
	var lastKey string
	first := true
	for {
		g, ok, err := merger.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		if !first {
			require.True(t, lastKey < g.Key, "merge output must be ascending")
		}
		first = false
		lastKey = g.Key
		total += g.List.Len()
	}
	require.Equal(t, 25, total)
}

func keyName(i int) string {
	return "run" + string(rune('0'+i/10)) + string(rune('0'+i%10)) + ".spill"
}

func TestMalformedLineIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.spill")
	require.NoError(t, os.WriteFile(path, []byte("no-delimiter-here\ngood\tQQ==\n"), 0o644))

	log := logging.Nop()
	r, err := openReader(log, path)
	require.NoError(t, err)
	defer r.close()
	require.Equal(t, "good", r.key)
}
