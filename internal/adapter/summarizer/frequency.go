package summarizer

import (
	"sort"
	"strings"
	"unicode"
)

// Defaults of the extractive summarizer.
const (
	DefaultMaxSentences  = 3
	DefaultMinLength     = 50
	DefaultFallbackChars = 200
	minSentenceWords     = 5
)

// FrequencySummarizer ranks sentences by the normalized frequency of their
// words and keeps the best ones in their original order.
type FrequencySummarizer struct {
	maxSentences  int
	minLength     int
	fallbackChars int
	stopwords     map[string]struct{}
}

// NewFrequencySummarizer creates a summarizer. Non-positive values select
// the defaults.
func NewFrequencySummarizer(maxSentences, minLength, fallbackChars int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if fallbackChars <= 0 {
		fallbackChars = DefaultFallbackChars
	}
	return &FrequencySummarizer{
		maxSentences:  maxSentences,
		minLength:     minLength,
		fallbackChars: fallbackChars,
		stopwords:     defaultStopwords(),
	}
}

// Summarize returns up to maxSentences sentences of text. Short texts, and
// texts made only of stopwords, are truncated instead.
func (s *FrequencySummarizer) Summarize(text string) string {
	if len([]rune(strings.TrimSpace(text))) < s.minLength {
		return prefix(text, s.fallbackChars)
	}

	freq := map[string]float64{}
	for _, w := range s.words(text) {
		if _, stop := s.stopwords[w]; !stop {
			freq[w]++
		}
	}
	if len(freq) == 0 {
		return prefix(text, s.fallbackChars)
	}

	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	for w, v := range freq {
		freq[w] = v / maxF
	}

	var sentences []string
	for _, sent := range splitSentences(text) {
		if len(strings.Fields(sent)) >= minSentenceWords {
			sentences = append(sentences, sent)
		}
	}
	if len(sentences) <= s.maxSentences {
		return strings.Join(sentences, " ")
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(sentences))
	for i, sent := range sentences {
		words := s.words(sent)
		score, counted := 0.0, 0
		for _, w := range words {
			if v, ok := freq[w]; ok {
				score += v
				counted++
			}
		}
		if counted > 0 {
			scores = append(scores, scored{idx: i, score: score / float64(len(words))})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > s.maxSentences {
		scores = scores[:s.maxSentences]
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].idx < scores[j].idx })

	out := make([]string, len(scores))
	for i, sc := range scores {
		out[i] = sentences[sc.idx]
	}
	return strings.Join(out, " ")
}

// words lowercases text, drops punctuation and splits on whitespace.
func (s *FrequencySummarizer) words(text string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	return strings.Fields(clean)
}

// splitSentences splits after '.', '!' or '?' followed by whitespace.
// Abbreviations such as "Mr." or "U.S." do not end a sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && isAbbreviation(runes[:i+1]) {
			continue
		}
		if sent := strings.TrimSpace(string(runes[start : i+1])); sent != "" {
			sentences = append(sentences, sent)
		}
		start = i + 1
	}
	if sent := strings.TrimSpace(string(runes[start:])); sent != "" {
		sentences = append(sentences, sent)
	}
	return sentences
}

// isAbbreviation reports whether s ends in "X.x." or "Mr." style tokens.
func isAbbreviation(s []rune) bool {
	n := len(s)
	if n >= 4 && s[n-3] == '.' && isWord(s[n-4]) && isWord(s[n-2]) {
		return true
	}
	if n >= 3 && unicode.IsUpper(s[n-3]) && unicode.IsLower(s[n-2]) && (n == 3 || !isWord(s[n-4])) {
		return true
	}
	return false
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func prefix(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"the", "and", "of", "to", "a", "in", "is", "that", "for", "it", "on",
		"with", "as", "are", "was", "this", "by", "be", "at", "or", "from",
		"an", "not", "but", "can", "if", "we", "has", "have", "which", "their",
		"will", "its", "about", "would", "there", "so", "what", "who", "when",
		"they", "he", "she", "his", "her", "been", "had", "were", "one", "all",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
