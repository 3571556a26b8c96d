package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textcorpus/posindex/internal/pipeline"
	"github.com/textcorpus/posindex/internal/position"
	"github.com/textcorpus/posindex/internal/synonym"
)

func tok(doc, sent, begin, end int32, text, lemma, pos, ner, normNER string) Token {
	return Token{
		DocumentID: doc, SentenceID: sent, BeginChar: begin, EndChar: end,
		Text: text, Lemma: lemma, POS: pos, NER: ner, NormalizedNER: normNER,
		Date: 19723,
	}
}

func drain(t *testing.T, e *Extractor, batch Batch) map[string]*position.PositionList {
	t.Helper()
	acc := pipeline.NewAccumulator(position.DedupExact)
	require.NoError(t, e.Extract(context.Background(), batch, acc))
	out := make(map[string]*position.PositionList)
	acc.Ascend(func(key string, list *position.PositionList) bool {
		out[key] = list
		return true
	})
	return out
}

// Scenario 1 from spec.md §8.
func TestUnigramScenario(t *testing.T) {
	sent := Sentence{DocumentID: 1, SentenceID: 1, Tokens: []Token{
		tok(1, 1, 0, 3, "The", "the", "DT", "", ""),
		tok(1, 1, 4, 9, "quick", "quick", "JJ", "", ""),
		tok(1, 1, 10, 15, "brown", "brown", "JJ", "", ""),
		tok(1, 1, 16, 19, "fox", "fox", "NN", "", ""),
	}}
	e, err := New(FlavorUnigram, Options{Stopwords: NewStopwordSet("the")})
	require.NoError(t, err)

	result := drain(t, e, Batch{Sentences: []Sentence{sent}})
	require.Contains(t, result, "quick")
	require.Contains(t, result, "brown")
	require.Contains(t, result, "fox")
	require.NotContains(t, result, "the")
	require.Equal(t, 1, result["fox"].Len())
}

// Scenario 2 from spec.md §8: bigrams do not cross a sentence boundary.
func TestBigramDoesNotCrossSentenceBoundary(t *testing.T) {
	sent1 := Sentence{DocumentID: 1, SentenceID: 1, Tokens: []Token{
		tok(1, 1, 0, 3, "The", "the", "DT", "", ""),
		tok(1, 1, 4, 9, "quick", "quick", "JJ", "", ""),
		tok(1, 1, 10, 15, "brown", "brown", "JJ", "", ""),
		tok(1, 1, 16, 19, "fox", "fox", "NN", "", ""),
	}}
	sent2 := Sentence{DocumentID: 1, SentenceID: 2, Tokens: []Token{
		tok(1, 2, 0, 5, "jumps", "jumps", "VBZ", "", ""),
	}}
	e, err := New(FlavorBigram, Options{Stopwords: NewStopwordSet("the")})
	require.NoError(t, err)

	result := drain(t, e, Batch{Sentences: []Sentence{sent1, sent2}})
	require.Contains(t, result, JoinKey("quick", "brown"))
	require.Contains(t, result, JoinKey("brown", "fox"))
	require.NotContains(t, result, JoinKey("fox", "jumps"))
}

// Scenario 4: date normalization.
func TestDateFlavor(t *testing.T) {
	sent := Sentence{DocumentID: 1, SentenceID: 1, Tokens: []Token{
		tok(1, 1, 0, 12, "July 4, 2023", "july 4 2023", "", "DATE", "2023-07-04"),
	}}
	e, err := New(FlavorDate, Options{Stopwords: NewStopwordSet()})
	require.NoError(t, err)

	result := drain(t, e, Batch{Sentences: []Sentence{sent}})
	require.Contains(t, result, "20230704")
	require.Equal(t, 1, result["20230704"].Len())
}

// Scenario 5: NER entity merging.
func TestNEREntityMerging(t *testing.T) {
	sent := Sentence{DocumentID: 1, SentenceID: 1, Tokens: []Token{
		{DocumentID: 1, SentenceID: 1, BeginChar: 0, EndChar: 4, Text: "John", NER: "PERSON", AnnotationID: 1, Date: 1},
		{DocumentID: 1, SentenceID: 1, BeginChar: 5, EndChar: 7, Text: "Q.", NER: "PERSON", AnnotationID: 2, Date: 1},
		{DocumentID: 1, SentenceID: 1, BeginChar: 8, EndChar: 14, Text: "Public", NER: "PERSON", AnnotationID: 3, Date: 1},
		{DocumentID: 1, SentenceID: 1, BeginChar: 15, EndChar: 18, Text: "Jr.", NER: "PERSON", AnnotationID: 4, Date: 1},
	}}
	e, err := New(FlavorNER, Options{Stopwords: NewStopwordSet()})
	require.NoError(t, err)

	result := drain(t, e, Batch{Sentences: []Sentence{sent}})
	require.Len(t, result, 1)
	for k, v := range result {
		require.Equal(t, "PERSON"+Delimiter+"john q. public jr.", k)
		require.Equal(t, 1, v.Len())
		p := v.Positions()[0]
		require.Equal(t, int32(0), p.BeginChar)
		require.Equal(t, int32(18), p.EndChar)
	}
}

// Scenario 6: same-run fuzzy dedup collapses near-identical spans.
func TestFuzzyDedupWithinRun(t *testing.T) {
	sent := Sentence{DocumentID: 1, SentenceID: 1, Tokens: []Token{
		tok(1, 1, 10, 15, "apple", "apple", "NN", "", ""),
		tok(1, 1, 11, 16, "apple", "apple", "NN", "", ""),
	}}
	e, err := New(FlavorUnigram, Options{Stopwords: NewStopwordSet()})
	require.NoError(t, err)

	acc := pipeline.NewAccumulator(position.DedupFuzzy)
	require.NoError(t, e.Extract(context.Background(), Batch{Sentences: []Sentence{sent}}, acc))
	acc.Ascend(func(key string, list *position.PositionList) bool {
		require.Equal(t, 1, list.Len())
		return true
	})
}

func TestStitchSkipsSelfReferentialDate(t *testing.T) {
	sent := Sentence{DocumentID: 1, SentenceID: 1, Tokens: []Token{
		tok(1, 1, 0, 10, "2023-07-04", "2023-07-04", "CD", "DATE", "2023-07-04"),
	}}
	tables := map[synonym.Kind]*synonym.Table{}
	for _, k := range []synonym.Kind{synonym.KindDate, synonym.KindNER, synonym.KindPOS, synonym.KindDependency} {
		tbl, err := synonym.Open(k, t.TempDir()+"/"+string(k)+".json")
		require.NoError(t, err)
		tables[k] = tbl
	}
	e, err := New(FlavorStitch, Options{Stopwords: NewStopwordSet(), Synonyms: tables})
	require.NoError(t, err)

	result := drain(t, e, Batch{Sentences: []Sentence{sent}})
	for k := range result {
		require.NotEqual(t, JoinKey("2023-07-04", string(synonym.KindDate)), k)
	}
}

func TestHypernymRequiresAllowedRelation(t *testing.T) {
	sent := Sentence{DocumentID: 1, SentenceID: 1, Dependencies: []Dependency{
		{DocumentID: 1, SentenceID: 1, HeadToken: "fruit", DependentToken: "apple", Relation: "nmod:such_as", HeadBeginChar: 0, HeadEndChar: 5, DepBeginChar: 10, DepEndChar: 15, Date: 1},
		{DocumentID: 1, SentenceID: 1, HeadToken: "fruit", DependentToken: "banana", Relation: "nsubj", HeadBeginChar: 0, HeadEndChar: 5, DepBeginChar: 20, DepEndChar: 26, Date: 1},
	}}
	e, err := New(FlavorHypernym, Options{Stopwords: NewStopwordSet()})
	require.NoError(t, err)

	result := drain(t, e, Batch{Sentences: []Sentence{sent}})
	require.Contains(t, result, JoinKey("fruit", "apple"))
	require.NotContains(t, result, JoinKey("fruit", "banana"))
}
