package position

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genPosition(t *rapid.T) Position {
	doc := rapid.Int32Range(0, 20).Draw(t, "doc")
	sent := rapid.Int32Range(0, 20).Draw(t, "sent")
	begin := rapid.Int32Range(0, 200).Draw(t, "begin")
	end := begin + rapid.Int32Range(0, 30).Draw(t, "len")
	date := rapid.Int64Range(0, 20000).Draw(t, "date")
	return Position{DocumentID: doc, SentenceID: sent, BeginChar: begin, EndChar: end, Date: date}
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(rt, "n")
		list := NewList()
		for i := 0; i < n; i++ {
			list.Add(genPosition(rt))
		}
		expected := sortDedup(list.Positions(), DedupExact)

		data, err := list.Serialize(SerializeOptions{})
		require.NoError(rt, err)

		decoded, err := Deserialize(data)
		require.NoError(rt, err)
		require.Equal(rt, expected, decoded.Positions())
	})
}

func TestRoundTripWithCompression(t *testing.T) {
	list := NewList()
	for i := 0; i < 500; i++ {
		p, err := New(int32(i/20), int32(i%20), int32(i*3), int32(i*3+5), int64(19000+i))
		require.NoError(t, err)
		list.Add(p)
	}
	for _, codec := range []Codec{CodecDeflate, CodecSnappy} {
		data, err := list.Serialize(SerializeOptions{Codec: codec, CompressMinBytes: 1})
		require.NoError(t, err)
		decoded, err := Deserialize(data)
		require.NoError(t, err)
		require.Equal(t, sortDedup(list.Positions(), DedupExact), decoded.Positions())
	}
}

func TestMergeIdempotence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(rt, "n")
		list := NewList()
		for i := 0; i < n; i++ {
			list.Add(genPosition(rt))
		}
		list.Sort(DedupExact)
		merged := list.Merge(list, DedupExact)
		require.Equal(rt, list.Positions(), merged.Positions())
	})
}

func TestMergeCommutativity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		na := rapid.IntRange(0, 30).Draw(rt, "na")
		nb := rapid.IntRange(0, 30).Draw(rt, "nb")
		a, b := NewList(), NewList()
		for i := 0; i < na; i++ {
			a.Add(genPosition(rt))
		}
		for i := 0; i < nb; i++ {
			b.Add(genPosition(rt))
		}
		ab := a.Merge(b, DedupExact)
		ba := b.Merge(a, DedupExact)
		require.Equal(rt, ab.Positions(), ba.Positions())
	})
}

func TestFuzzyDedup(t *testing.T) {
	list := NewList(
		mustPos(1, 1, 10, 15, 1),
		mustPos(1, 1, 11, 16, 1),
	)
	list.Sort(DedupFuzzy)
	require.Len(t, list.Positions(), 1)
}

func TestFuzzyDedupDoesNotCollapseDistantSpans(t *testing.T) {
	list := NewList(
		mustPos(1, 1, 10, 15, 1),
		mustPos(1, 1, 20, 25, 1),
	)
	list.Sort(DedupFuzzy)
	require.Len(t, list.Positions(), 2)
}

func TestExactDedupDoesNotCollapseFuzzyOverlap(t *testing.T) {
	list := NewList(
		mustPos(1, 1, 10, 15, 1),
		mustPos(1, 1, 11, 16, 1),
	)
	list.Sort(DedupExact)
	require.Len(t, list.Positions(), 2)
}

func TestInvalidSpanRejected(t *testing.T) {
	_, err := New(0, 0, 10, 5, 0)
	require.Error(t, err)
}

func TestEmptySerializeRoundTrip(t *testing.T) {
	list := NewList()
	data, err := list.Serialize(SerializeOptions{})
	require.NoError(t, err)
	require.Empty(t, data)
	decoded, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, 0, decoded.Len())
}

func mustPos(doc, sent, begin, end int32, date int64) Position {
	p, err := New(doc, sent, begin, end, date)
	if err != nil {
		panic(err)
	}
	return p
}
