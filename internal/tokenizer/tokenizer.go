// Package tokenizer provides the default text tokenizer used to feed the
// symbol generator.
//
// Text is Unicode-normalised (NFKC), lower-cased and split on anything that
// is not a letter or digit. Purely alphabetic tokens are reduced to a root
// form by a small rule-based lemmatizer. Strict mode keeps only tokens that
// contain a letter and are not stopwords; non-strict mode keeps every token,
// which matters for header and value text where numbers carry meaning.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer converts text into an ordered sequence of normalised tokens.
// Implementations must be pure and safe for concurrent use.
type Tokenizer interface {
	Tokenize(text string, strict bool) []string
}

// Default is the built-in Tokenizer.
type Default struct {
	stopwords map[string]struct{}
	lemmatize bool
}

// Option configures a Default tokenizer.
type Option func(*Default)

// WithStopwords drops the given words in strict mode. Words are matched
// after normalisation and lemmatisation.
func WithStopwords(words ...string) Option {
	return func(d *Default) {
		for _, w := range words {
			w = strings.TrimSpace(strings.ToLower(w))
			if w != "" {
				d.stopwords[w] = struct{}{}
			}
		}
	}
}

// WithoutLemmas disables root-form reduction.
func WithoutLemmas() Option {
	return func(d *Default) {
		d.lemmatize = false
	}
}

// New creates a Default tokenizer.
func New(opts ...Option) *Default {
	d := &Default{
		stopwords: make(map[string]struct{}),
		lemmatize: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tokenize implements Tokenizer.
func (d *Default) Tokenize(text string, strict bool) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	// cases.Caser is stateful, so one is built per call.
	lowered := cases.Lower(language.Und).String(norm.NFKC.String(text))

	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		alpha := isAlpha(field)
		if d.lemmatize && alpha {
			field = Lemma(field)
		}
		if strict {
			if !hasLetter(field) {
				continue
			}
			if _, stop := d.stopwords[field]; stop {
				continue
			}
		}
		tokens = append(tokens, field)
	}
	return tokens
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// EnglishStopwords is a compact stopword list that callers may opt into
// with WithStopwords.
var EnglishStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "have",
	"in", "into", "it", "its", "of", "on", "or", "that", "the", "this", "to",
	"with",
}
