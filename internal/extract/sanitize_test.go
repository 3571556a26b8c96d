package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSanitizeNeverLeavesDelimiterByte is spec §8 property 4: key components
// formed from Sanitize(t) contain no \x00, regardless of input.
func TestSanitizeNeverLeavesDelimiterByte(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		require.False(t, strings.ContainsRune(Sanitize(s), 0))
	})
}

// TestDesanitizeReversesSanitize covers the round-trip half of property 4.
// Sanitize also trims surrounding whitespace, so the round-trip is stated
// against already-trimmed input, matching what Sanitize actually promises.
func TestDesanitizeReversesSanitize(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := strings.TrimSpace(rapid.String().Draw(rt, "s"))
		require.Equal(t, s, Desanitize(Sanitize(s)))
	})
}

func TestJoinKeyPartsStayDelimited(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		parts := make([]string, n)
		for i := range parts {
			parts[i] = rapid.String().Draw(rt, "part")
		}
		joined := JoinKey(parts...)
		require.Equal(t, n, len(strings.Split(joined, Delimiter)))
	})
}
