package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Options configures a Tokenizer.
type Options struct {
	Stemming    bool
	Stopwords   bool
	MinTokenLen int
}

// Tokenizer case-folds text and splits it on non-alphanumeric runes, with
// optional stopword removal and light stemming. Indexing and querying must
// share one Tokenizer configuration.
type Tokenizer struct {
	stopwords map[string]struct{}
	opts      Options
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(opts Options) *Tokenizer {
	if opts.MinTokenLen <= 0 {
		opts.MinTokenLen = 1
	}
	t := &Tokenizer{opts: opts}
	if opts.Stopwords {
		t.stopwords = defaultStopwords()
	}
	return t
}

// Tokenize splits text into tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	// cases.Caser keeps state between calls and is not safe for concurrent use.
	folded := cases.Fold().String(text)
	words := splitWords(folded)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		if len([]rune(word)) < t.opts.MinTokenLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.opts.Stemming {
			word = Stem(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Options returns the configuration the tokenizer was built with.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// TermFrequencies tokenizes text and counts every term.
func (t *Tokenizer) TermFrequencies(text string) (map[string]int, int) {
	tokens := t.Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf, len(tokens)
}

// splitWords splits text into runs of letters and digits.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"about", "there", "one",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
