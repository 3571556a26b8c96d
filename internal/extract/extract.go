package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/pipeline"
	"github.com/textcorpus/posindex/internal/position"
	"github.com/textcorpus/posindex/internal/synonym"
)

// Flavor names one of the nine index kinds (spec §4.G / GLOSSARY).
type Flavor string

const (
	FlavorUnigram    Flavor = "unigram"
	FlavorBigram     Flavor = "bigram"
	FlavorTrigram    Flavor = "trigram"
	FlavorPOS        Flavor = "pos"
	FlavorNER        Flavor = "ner"
	FlavorDate       Flavor = "date"
	FlavorDependency Flavor = "dependency"
	FlavorHypernym   Flavor = "hypernym"
	FlavorStitch     Flavor = "stitch"
)

// hypernymAllow is the fixed relation allow-set for the hypernym flavor.
var hypernymAllow = map[string]bool{
	"nmod:such_as":  true,
	"nmod:as":       true,
	"nmod:including": true,
	"conj:and":      true,
	"conj:or":       true,
}

// dependencyDrop is the fixed relation deny-set for the dependency flavor.
var dependencyDrop = map[string]bool{
	"punct": true,
	"det":   true,
	"case":  true,
	"cc":    true,
}

// Options configures one flavor's Extractor.
type Options struct {
	Stopwords *StopwordSet
	Synonyms  map[synonym.Kind]*synonym.Table // required only for the stitch flavor
	Dedup     position.DedupMode
	// FilterExpr is an optional, already-compiled CEL predicate run after
	// the fixed filter chain; a candidate is dropped (not errored) when it
	// evaluates to false. See SPEC_FULL.md component O.
	FilterExpr cel.Program
	Log        *logging.Logger
}

// Extractor implements pipeline.Extractor[Batch] for one flavor. A single
// type dispatching on Flavor matches spec §9's "tagged variant, not
// inheritance" design note: there is one extraction entrypoint per batch,
// specialized by a field rather than a type hierarchy.
type Extractor struct {
	flavor Flavor
	opts   Options
}

// New builds the Extractor for flavor. The stitch flavor requires
// opts.Synonyms to hold all four kinds; callers get a ConfigError
// otherwise.
func New(flavor Flavor, opts Options) (*Extractor, error) {
	if flavor == FlavorStitch {
		for _, k := range []synonym.Kind{synonym.KindDate, synonym.KindNER, synonym.KindPOS, synonym.KindDependency} {
			if opts.Synonyms[k] == nil {
				return nil, errs.New(errs.KindConfig, fmt.Sprintf("stitch flavor requires a synonym table for kind %s", k))
			}
		}
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return &Extractor{flavor: flavor, opts: opts}, nil
}

var _ pipeline.Extractor[Batch] = (*Extractor)(nil)

// candidate is one (key, Position) pair pending the optional CEL filter.
type candidate struct {
	key    string
	pos    position.Position
	fields map[string]any
}

// Extract dispatches to the flavor-specific extraction function, then
// applies the optional CEL filter before folding survivors into acc.
// Per-tuple failures are logged and skipped (spec §4.F error policy);
// Extract itself only returns errors it cannot attribute to one tuple.
func (e *Extractor) Extract(ctx context.Context, batch Batch, acc *pipeline.Accumulator) error {
	for _, sent := range batch.Sentences {
		var cands []candidate
		var err error
		switch e.flavor {
		case FlavorUnigram:
			cands = e.extractUnigram(sent)
		case FlavorBigram:
			cands = e.extractNgram(sent, 2)
		case FlavorTrigram:
			cands = e.extractNgram(sent, 3)
		case FlavorPOS:
			cands = e.extractPOS(sent)
		case FlavorNER:
			cands = e.extractNER(sent)
		case FlavorDate:
			cands, err = e.extractDate(sent)
		case FlavorDependency:
			cands = e.extractDependency(sent)
		case FlavorHypernym:
			cands = e.extractHypernym(sent)
		case FlavorStitch:
			cands, err = e.extractStitch(sent)
		default:
			return errs.New(errs.KindConfig, fmt.Sprintf("unknown flavor %q", e.flavor))
		}
		if err != nil {
			e.opts.Log.Warn("skipping sentence after extraction error", "flavor", e.flavor, "doc", sent.DocumentID, "sentence", sent.SentenceID, "err", err)
			continue
		}
		for _, c := range cands {
			keep, err := e.passesFilter(ctx, c)
			if err != nil {
				e.opts.Log.Warn("filter expression error, dropping tuple", "flavor", e.flavor, "err", err)
				continue
			}
			if !keep {
				continue
			}
			acc.Add(c.key, c.pos)
		}
	}
	return nil
}

func (e *Extractor) passesFilter(ctx context.Context, c candidate) (bool, error) {
	if e.opts.FilterExpr == nil {
		return true, nil
	}
	out, _, err := e.opts.FilterExpr.ContextEval(ctx, c.fields)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not evaluate to a bool")
	}
	return b, nil
}

func isEmptyOrNull(s string) bool { return strings.TrimSpace(s) == "" }
