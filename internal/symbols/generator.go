// Package symbols turns token sequences into the n-gram symbols that label
// the lexical graph.
//
// A symbol is the "_"-joined string of its constituent tokens. Unigrams are
// the tokens verbatim; bigrams and trigrams slide a window of two and three
// tokens across the sequence.
package symbols

import "strings"

// Gram identifies the size class of a symbol.
type Gram string

const (
	Unigram Gram = "unigram"
	Bigram  Gram = "bigram"
	Trigram Gram = "trigram"
)

// Separator joins tokens into a symbol key.
const Separator = "_"

// cascade is the matching priority: longest, most specific first.
var cascade = []Gram{Trigram, Bigram, Unigram}

// Symbols holds the generated n-grams of a token sequence, per gram size.
type Symbols map[Gram][]string

// Len returns the total number of symbols across all gram sizes.
func (s Symbols) Len() int {
	n := 0
	for _, values := range s {
		n += len(values)
	}
	return n
}

// Each calls fn for every symbol, unigrams first. Duplicate symbols within a
// gram size are reported once.
func (s Symbols) Each(fn func(gram Gram, symbol string)) {
	for i := len(cascade) - 1; i >= 0; i-- {
		gram := cascade[i]
		seen := make(map[string]struct{}, len(s[gram]))
		for _, symbol := range s[gram] {
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}
			fn(gram, symbol)
		}
	}
}

// Generate builds the unigram, bigram and trigram symbols of tokens.
// Gram sizes longer than the sequence yield empty lists; it never fails.
func Generate(tokens []string) Symbols {
	return Symbols{
		Unigram: window(tokens, 1),
		Bigram:  window(tokens, 2),
		Trigram: window(tokens, 3),
	}
}

func window(tokens []string, size int) []string {
	if len(tokens) < size {
		return []string{}
	}
	out := make([]string, 0, len(tokens)-size+1)
	for i := 0; i+size <= len(tokens); i++ {
		if size == 1 {
			out = append(out, tokens[i])
			continue
		}
		out = append(out, strings.Join(tokens[i:i+size], Separator))
	}
	return out
}

// MaxGram joins every token into a single canonical identifier, whatever
// the sequence length. Key and value nodes are keyed by it.
func MaxGram(tokens []string) string {
	return strings.Join(tokens, Separator)
}

// Grams returns the cascade order used by extraction: trigram, bigram,
// unigram.
func Grams() []Gram {
	out := make([]Gram, len(cascade))
	copy(out, cascade)
	return out
}

// IsGram reports whether t names one of the symbol gram sizes.
func IsGram(t string) bool {
	switch Gram(t) {
	case Unigram, Bigram, Trigram:
		return true
	}
	return false
}

// Weight is the base score of an exact match at this gram size:
// trigram 3, bigram 2, unigram 1.
func (g Gram) Weight() float64 {
	switch g {
	case Trigram:
		return 3
	case Bigram:
		return 2
	case Unigram:
		return 1
	}
	return 0
}

// Split breaks a symbol key back into its tokens.
func Split(symbol string) []string {
	if symbol == "" {
		return nil
	}
	return strings.Split(symbol, Separator)
}
