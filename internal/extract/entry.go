// Package extract implements the per-flavor key-extraction policies
// (spec §4.G): unigram, bigram, trigram, pos, ner, date, dependency,
// hypernym, and stitch, all funneling into the same pipeline.Extractor
// contract.
package extract

// Token is one annotated token (an `annotations` row joined against its
// document's date).
type Token struct {
	DocumentID   int32
	SentenceID   int32
	BeginChar    int32
	EndChar      int32
	Text         string
	Lemma        string
	POS          string
	NER          string
	NormalizedNER string
	AnnotationID int32 // present for NER spans; used for consecutive-id merging
	Date         int64 // days since epoch, from the owning document
}

// Dependency is one `dependencies` row joined against its document's date.
type Dependency struct {
	DocumentID     int32
	SentenceID     int32
	HeadBeginChar  int32
	HeadEndChar    int32
	DepBeginChar   int32
	DepEndChar     int32
	HeadToken      string
	DependentToken string
	Relation       string
	Date           int64
}

// Sentence groups one sentence's tokens and dependency edges, already
// ordered by begin_char per spec §6's stable (doc, sentence, begin) order.
type Sentence struct {
	DocumentID   int32
	SentenceID   int32
	Tokens       []Token
	Dependencies []Dependency
}

// Batch is one fetched window of sentences, the concrete type parameter
// every flavor's Extractor instantiates pipeline.Pipeline[Batch] with.
type Batch struct {
	Sentences []Sentence
}
