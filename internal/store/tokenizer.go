package store

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/go-porterstemmer"
)

// DefaultStopWords are dropped from both documents and queries.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "will", "with",
}

var defaultStopWordMap = BuildStopWordMap(DefaultStopWords)

// Token is a prepared term with its byte offsets in the original text.
type Token struct {
	Term  string
	Start int
	End   int
}

// Prepare runs the full text pipeline: lowercase, split on anything that is
// not a letter or digit, drop stop words, and Porter-stem.
func Prepare(text string) []string {
	return PrepareWith(text, defaultStopWordMap)
}

// PrepareWith is Prepare with a caller-supplied stop word set.
func PrepareWith(text string, stopWords map[string]struct{}) []string {
	tokens := TokenizeText(text)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if term, ok := normalizeTerm(tok.Term, stopWords); ok {
			terms = append(terms, term)
		}
	}
	return terms
}

// PrepareTokens is Prepare that keeps offsets, for analyzers that need positions.
func PrepareTokens(text string, stopWords map[string]struct{}) []Token {
	tokens := TokenizeText(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if term, ok := normalizeTerm(tok.Term, stopWords); ok {
			tok.Term = term
			out = append(out, tok)
		}
	}
	return out
}

// TokenizeText lowercases and splits text on runs of non letter/digit runes.
// Offsets refer to the original input.
func TokenizeText(text string) []Token {
	var tokens []Token
	start := -1

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{Term: strings.ToLower(text[start:i]), Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Term: strings.ToLower(text[start:]), Start: start, End: len(text)})
	}

	return tokens
}

// normalizeTerm drops stop words and stems the rest.
func normalizeTerm(term string, stopWords map[string]struct{}) (string, bool) {
	if term == "" {
		return "", false
	}
	if _, isStop := stopWords[term]; isStop {
		return "", false
	}
	// The Porter stemmer only understands ASCII words.
	if !isASCII(term) {
		return term, true
	}
	stemmed := porterstemmer.StemString(term)
	if stemmed == "" {
		return term, true
	}
	return stemmed, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// BuildStopWordMap converts a slice of stop words to a lookup set.
// A nil slice yields the default set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
