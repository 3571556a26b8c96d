package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textcorpus/posindex/internal/config"
	"github.com/textcorpus/posindex/internal/extract"
	"github.com/textcorpus/posindex/internal/position"
)

func TestParseFilterExprsSplitsOnFirstEquals(t *testing.T) {
	got := parseFilterExprs([]string{"unigram=doc_id == 1", "pos=pos == \"NN\"", "malformed"})
	require.Equal(t, "doc_id == 1", got["unigram"])
	require.Equal(t, `pos == "NN"`, got["pos"])
	require.NotContains(t, got, "malformed")
}

func TestDedupModeForRespectsFuzzyList(t *testing.T) {
	cfg := config.Default()
	cfg.FuzzyDedupFlavors = []string{"unigram", "ner"}

	require.Equal(t, position.DedupFuzzy, dedupModeFor(cfg, extract.FlavorUnigram))
	require.Equal(t, position.DedupFuzzy, dedupModeFor(cfg, extract.FlavorNER))
	require.Equal(t, position.DedupExact, dedupModeFor(cfg, extract.FlavorBigram))
}

func TestCompiledFilterForReturnsNilWhenAbsent(t *testing.T) {
	cfg := config.Default()
	prog, err := compiledFilterFor(cfg, extract.FlavorUnigram)
	require.NoError(t, err)
	require.Nil(t, prog)
}

func TestCompiledFilterForCompilesConfiguredExpression(t *testing.T) {
	cfg := config.Default()
	cfg.FilterExpr = map[string]string{"unigram": `lemma != ""`}
	prog, err := compiledFilterFor(cfg, extract.FlavorUnigram)
	require.NoError(t, err)
	require.NotNil(t, prog)
}
