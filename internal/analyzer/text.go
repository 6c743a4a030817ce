package analyzer

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// DefaultStopwords is a small English list used by Preprocess.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "can", "could", "do", "does",
	"for", "from", "how", "i", "in", "is", "it", "me", "my", "of", "on", "or", "please",
	"show", "tell", "that", "the", "this", "to", "was", "what", "when", "where", "which",
	"who", "why", "will", "with", "would", "you", "your",
}

// Tokenize lower-cases text and splits it into word tokens.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func RemoveStopwords(tokens, stopwords []string) []string {
	skip := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		skip[w] = struct{}{}
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := skip[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// Stem strips one trailing "s" from each token.
func Stem(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.TrimSuffix(t, "s")
	}
	return out
}

func Preprocess(text string, stopwords []string) []string {
	return Stem(RemoveStopwords(Tokenize(text), stopwords))
}
