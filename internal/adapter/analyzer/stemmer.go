package analyzer

import "strings"

// Stem strips common English inflections: plural "s"/"es"/"ies" and the
// "ing"/"ed" verb endings. It is deliberately conservative; words shorter
// than four letters are returned unchanged.
func Stem(word string) string {
	if len(word) < 4 {
		return word
	}

	switch {
	case strings.HasSuffix(word, "ies") && !strings.HasSuffix(word, "eies") && !strings.HasSuffix(word, "aies"):
		word = word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "sses"):
		word = word[:len(word)-2]
	case strings.HasSuffix(word, "es") && hasSibilantBefore(word, len(word)-2):
		word = word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us"):
		word = word[:len(word)-1]
	}

	for _, suffix := range []string{"ing", "ed"} {
		if !strings.HasSuffix(word, suffix) {
			continue
		}
		stem := word[:len(word)-len(suffix)]
		if len(stem) < 3 || !containsVowel(stem) {
			break
		}
		return undouble(stem)
	}
	return word
}

func hasSibilantBefore(word string, i int) bool {
	prefix := word[:i]
	for _, s := range []string{"x", "ch", "sh", "z"} {
		if strings.HasSuffix(prefix, s) {
			return true
		}
	}
	return false
}

func containsVowel(s string) bool {
	return strings.ContainsAny(s, "aeiouy")
}

// undouble turns "runn" into "run" but keeps "ll", "ss" and "zz" endings.
func undouble(s string) string {
	n := len(s)
	if n < 2 || s[n-1] != s[n-2] {
		return s
	}
	switch s[n-1] {
	case 'l', 's', 'z', 'a', 'e', 'i', 'o', 'u':
		return s
	}
	return s[:n-1]
}
