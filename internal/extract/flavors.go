package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/textcorpus/posindex/internal/position"
	"github.com/textcorpus/posindex/internal/synonym"
)

var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func mustPosition(doc, sent, begin, end int32, date int64) (position.Position, bool) {
	p, err := position.New(doc, sent, begin, end, date)
	if err != nil {
		return position.Position{}, false
	}
	return p, true
}

// extractUnigram: key lower(lemma), dropping stopwords and null/empty
// lemmas.
func (e *Extractor) extractUnigram(sent Sentence) []candidate {
	var out []candidate
	for _, t := range sent.Tokens {
		if isEmptyOrNull(t.Lemma) || e.opts.Stopwords.Contains(t.Lemma) {
			continue
		}
		p, ok := mustPosition(t.DocumentID, t.SentenceID, t.BeginChar, t.EndChar, t.Date)
		if !ok {
			continue
		}
		out = append(out, candidate{
			key: JoinKey(t.Lemma),
			pos: p,
			fields: map[string]any{"lemma": strings.ToLower(t.Lemma), "pos": t.POS, "ner": t.NER, "doc_id": int64(t.DocumentID)},
		})
	}
	return out
}

// extractNgram builds n-length windows of consecutive tokens within the
// sentence (bigram: n=2, trigram: n=3). No stopword filter; all n lemmas
// must be non-null/non-empty.
func (e *Extractor) extractNgram(sent Sentence, n int) []candidate {
	var out []candidate
	toks := sent.Tokens
	for i := 0; i+n <= len(toks); i++ {
		window := toks[i : i+n]
		lemmas := make([]string, n)
		ok := true
		for j, t := range window {
			if isEmptyOrNull(t.Lemma) {
				ok = false
				break
			}
			lemmas[j] = t.Lemma
		}
		if !ok {
			continue
		}
		first, last := window[0], window[n-1]
		p, valid := mustPosition(first.DocumentID, first.SentenceID, first.BeginChar, last.EndChar, last.Date)
		if !valid {
			continue
		}
		out = append(out, candidate{
			key:    JoinKey(lemmas...),
			pos:    p,
			fields: map[string]any{"lemma": strings.ToLower(strings.Join(lemmas, " ")), "doc_id": int64(first.DocumentID)},
		})
	}
	return out
}

// extractPOS: key lower(tag), skipping null/empty tags.
func (e *Extractor) extractPOS(sent Sentence) []candidate {
	var out []candidate
	for _, t := range sent.Tokens {
		if isEmptyOrNull(t.POS) {
			continue
		}
		p, ok := mustPosition(t.DocumentID, t.SentenceID, t.BeginChar, t.EndChar, t.Date)
		if !ok {
			continue
		}
		out = append(out, candidate{key: JoinKey(t.POS), pos: p, fields: map[string]any{"pos": strings.ToLower(t.POS), "doc_id": int64(t.DocumentID)}})
	}
	return out
}

func isSkippableNERType(t string) bool {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "", "O", "DATE":
		return true
	default:
		return false
	}
}

// extractNER merges consecutive same-type tokens carrying consecutive
// annotation ids into one entity span (spec §4.G, Open Question (b):
// the id rule only, no offset-contiguity check).
func (e *Extractor) extractNER(sent Sentence) []candidate {
	var out []candidate
	toks := sent.Tokens
	i := 0
	for i < len(toks) {
		t := toks[i]
		if isSkippableNERType(t.NER) {
			i++
			continue
		}
		j := i + 1
		for j < len(toks) && strings.EqualFold(toks[j].NER, t.NER) && toks[j].AnnotationID == toks[j-1].AnnotationID+1 {
			j++
		}
		group := toks[i:j]
		var words []string
		for _, g := range group {
			words = append(words, strings.ToLower(g.Text))
		}
		first, last := group[0], group[len(group)-1]
		p, ok := mustPosition(first.DocumentID, first.SentenceID, first.BeginChar, last.EndChar, last.Date)
		if ok {
			key := Sanitize(strings.ToUpper(t.NER)) + Delimiter + Sanitize(strings.Join(words, " "))
			out = append(out, candidate{
				key: key,
				pos: p,
				fields: map[string]any{
					"ner":    strings.ToUpper(t.NER),
					"text":   strings.Join(words, " "),
					"doc_id": int64(first.DocumentID),
				},
			})
		}
		i = j
	}
	return out
}

// extractDate keys on the normalized date (YYYYMMDD), only for NER-typed
// DATE tokens whose normalized value is a valid YYYY-MM-DD date.
func (e *Extractor) extractDate(sent Sentence) ([]candidate, error) {
	var out []candidate
	for _, t := range sent.Tokens {
		if !strings.EqualFold(t.NER, "DATE") {
			continue
		}
		if !dateRE.MatchString(t.NormalizedNER) {
			continue
		}
		if _, err := time.Parse("2006-01-02", t.NormalizedNER); err != nil {
			continue
		}
		p, ok := mustPosition(t.DocumentID, t.SentenceID, t.BeginChar, t.EndChar, t.Date)
		if !ok {
			continue
		}
		out = append(out, candidate{
			key:    strings.ReplaceAll(t.NormalizedNER, "-", ""),
			pos:    p,
			fields: map[string]any{"normalized_ner": t.NormalizedNER, "doc_id": int64(t.DocumentID)},
		})
	}
	return out, nil
}

// extractDependency: key lower(head) ⌀ lower(rel) ⌀ lower(dep); drops
// stopword heads/deps and the fixed relation deny-set.
func (e *Extractor) extractDependency(sent Sentence) []candidate {
	var out []candidate
	for _, d := range sent.Dependencies {
		if e.opts.Stopwords.Contains(d.HeadToken) || e.opts.Stopwords.Contains(d.DependentToken) {
			continue
		}
		if dependencyDrop[strings.ToLower(d.Relation)] {
			continue
		}
		begin := min32(d.HeadBeginChar, d.DepBeginChar)
		end := max32(d.HeadEndChar, d.DepEndChar)
		p, ok := mustPosition(d.DocumentID, d.SentenceID, begin, end, d.Date)
		if !ok {
			continue
		}
		out = append(out, candidate{
			key: JoinKey(d.HeadToken, d.Relation, d.DependentToken),
			pos: p,
			fields: map[string]any{
				"head": strings.ToLower(d.HeadToken), "rel": strings.ToLower(d.Relation), "dep": strings.ToLower(d.DependentToken),
				"doc_id": int64(d.DocumentID),
			},
		})
	}
	return out
}

// extractHypernym: key lower(head) ⌀ lower(dep); relation restricted to a
// fixed allow-set, stopwords dropped.
func (e *Extractor) extractHypernym(sent Sentence) []candidate {
	var out []candidate
	for _, d := range sent.Dependencies {
		if !hypernymAllow[strings.ToLower(d.Relation)] {
			continue
		}
		if e.opts.Stopwords.Contains(d.HeadToken) || e.opts.Stopwords.Contains(d.DependentToken) {
			continue
		}
		begin := min32(d.HeadBeginChar, d.DepBeginChar)
		end := max32(d.HeadEndChar, d.DepEndChar)
		p, ok := mustPosition(d.DocumentID, d.SentenceID, begin, end, d.Date)
		if !ok {
			continue
		}
		out = append(out, candidate{
			key:    JoinKey(d.HeadToken, d.DependentToken),
			pos:    p,
			fields: map[string]any{"head": strings.ToLower(d.HeadToken), "dep": strings.ToLower(d.DependentToken), "doc_id": int64(d.DocumentID)},
		})
	}
	return out
}

// extractStitch joins every stopword-filtered unigram in the sentence
// with every co-located DATE/NER/POS/DEPENDENCY annotation, embedding the
// annotation's synonym id in the stitch Position's extension field, and
// skipping self-referential date stitches (spec §4.G).
func (e *Extractor) extractStitch(sent Sentence) ([]candidate, error) {
	var out []candidate
	for _, t := range sent.Tokens {
		if isEmptyOrNull(t.Lemma) || e.opts.Stopwords.Contains(t.Lemma) {
			continue
		}
		base, ok := mustPosition(t.DocumentID, t.SentenceID, t.BeginChar, t.EndChar, t.Date)
		if !ok {
			continue
		}

		for _, a := range sent.Tokens {
			if strings.EqualFold(a.NER, "DATE") && dateRE.MatchString(a.NormalizedNER) {
				if spansOverlap(t.BeginChar, t.EndChar, a.BeginChar, a.EndChar) {
					continue
				}
				id, err := e.opts.Synonyms[synonym.KindDate].GetOrCreate(a.NormalizedNER)
				if err != nil {
					continue
				}
				out = append(out, stitchCandidate(base, t.Lemma, synonym.KindDate, id))
			}
			if !isSkippableNERType(a.NER) {
				id, err := e.opts.Synonyms[synonym.KindNER].GetOrCreate(strings.ToUpper(a.NER))
				if err == nil {
					out = append(out, stitchCandidate(base, t.Lemma, synonym.KindNER, id))
				}
			}
			if !isEmptyOrNull(a.POS) {
				id, err := e.opts.Synonyms[synonym.KindPOS].GetOrCreate(strings.ToLower(a.POS))
				if err == nil {
					out = append(out, stitchCandidate(base, t.Lemma, synonym.KindPOS, id))
				}
			}
		}
		for _, d := range sent.Dependencies {
			id, err := e.opts.Synonyms[synonym.KindDependency].GetOrCreate(strings.ToLower(d.Relation))
			if err == nil {
				out = append(out, stitchCandidate(base, t.Lemma, synonym.KindDependency, id))
			}
		}
	}
	return out, nil
}

func stitchCandidate(base position.Position, token string, kind synonym.Kind, synonymID int32) candidate {
	p := base.WithExtension(synonymID, annotationKindFor(kind))
	return candidate{
		key:    JoinKey(token, string(kind)),
		pos:    p,
		fields: map[string]any{"token": strings.ToLower(token), "kind": string(kind)},
	}
}

func annotationKindFor(k synonym.Kind) position.AnnotationKind {
	switch k {
	case synonym.KindDate:
		return position.KindDate
	case synonym.KindNER:
		return position.KindNER
	case synonym.KindPOS:
		return position.KindPOS
	case synonym.KindDependency:
		return position.KindDependency
	default:
		return position.KindNone
	}
}

// spansOverlap reports whether [b1,e1) and [b2,e2) overlap or either
// contains the other.
func spansOverlap(b1, e1, b2, e2 int32) bool {
	return b1 < e2 && b2 < e1
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
