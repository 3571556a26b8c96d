package extract

import (
	"bufio"
	"os"
	"strings"

	"github.com/textcorpus/posindex/internal/errs"
)

// StopwordSet is a lowercased stopword lookup table, one word per line in
// its source file (spec §4.H's stopwords_path).
type StopwordSet struct {
	words map[string]struct{}
}

// LoadStopwords reads path, one word per line, lowercasing and trimming
// each. Blank lines are ignored.
func LoadStopwords(path string) (*StopwordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "opening stopwords file")
	}
	defer f.Close()

	set := &StopwordSet{words: make(map[string]struct{})}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w == "" {
			continue
		}
		set.words[w] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "reading stopwords file")
	}
	return set, nil
}

// NewStopwordSet builds a set directly from a word list, for tests and
// programmatic configuration.
func NewStopwordSet(words ...string) *StopwordSet {
	set := &StopwordSet{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		set.words[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// Contains reports whether w (case-insensitively) is a stopword.
func (s *StopwordSet) Contains(w string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[strings.ToLower(w)]
	return ok
}
