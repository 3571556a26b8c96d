package synonym

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	table, err := Open(KindNER, filepath.Join(t.TempDir(), "ner.json"))
	require.NoError(t, err)

	id1, err := table.GetOrCreate("PERSON")
	require.NoError(t, err)
	id2, err := table.GetOrCreate("PERSON")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.GreaterOrEqual(t, id1, Offsets[KindNER])

	idOther, err := table.GetOrCreate("ORG")
	require.NoError(t, err)
	require.NotEqual(t, id1, idOther)
}

func TestBijection(t *testing.T) {
	table, err := Open(KindPOS, filepath.Join(t.TempDir(), "pos.json"))
	require.NoError(t, err)

	id, err := table.GetOrCreate("NN")
	require.NoError(t, err)
	v, ok := table.Lookup(id)
	require.True(t, ok)
	require.Equal(t, "NN", v)
	require.Empty(t, table.Validate())
}

func TestDateKindRejectsBadInput(t *testing.T) {
	table, err := Open(KindDate, filepath.Join(t.TempDir(), "date.json"))
	require.NoError(t, err)

	_, err = table.GetOrCreate("not-a-date")
	require.Error(t, err)

	_, err = table.GetOrCreate("2023-02-30")
	require.Error(t, err)

	id, err := table.GetOrCreate("2023-07-04")
	require.NoError(t, err)
	require.GreaterOrEqual(t, id, Offsets[KindDate])
}

func TestPersistAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dep.json")

	t1, err := Open(KindDependency, path)
	require.NoError(t, err)
	id, err := t1.GetOrCreate("nsubj")
	require.NoError(t, err)
	require.NoError(t, t1.Close())

	t2, err := Open(KindDependency, path)
	require.NoError(t, err)
	id2, err := t2.GetOrCreate("nsubj")
	require.NoError(t, err)
	require.Equal(t, id, id2)

	idNew, err := t2.GetOrCreate("dobj")
	require.NoError(t, err)
	require.Greater(t, idNew, id2)
}

// TestBijectionProperty is spec §8 property 7: lookup(get_or_create(v,k),
// k) == v for every distinct value, and every allocated id lies within
// kind k's offset range (and below the next kind's offset, since ranges
// are disjoint and ordered).
func TestBijectionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		table, err := Open(KindNER, filepath.Join(t.TempDir(), "ner.json"))
		require.NoError(rt, err)
		defer table.Close()

		n := rapid.IntRange(1, 50).Draw(rt, "n")
		seen := make(map[string]int32, n)
		for i := 0; i < n; i++ {
			v := fmt.Sprintf("VALUE_%d", rapid.IntRange(0, 30).Draw(rt, "v"))
			id, err := table.GetOrCreate(v)
			require.NoError(rt, err)
			require.GreaterOrEqual(rt, id, Offsets[KindNER])
			require.Less(rt, id, Offsets[KindPOS])

			if prior, ok := seen[v]; ok {
				require.Equal(rt, prior, id, "get_or_create must be idempotent for the same value")
			}
			seen[v] = id

			lookedUp, ok := table.Lookup(id)
			require.True(rt, ok)
			require.Equal(rt, v, lookedUp)
		}
	})
}
