package extractor

import (
	"math"
	"sort"

	"github.com/Benny93/lexigraph/internal/graph"
	"github.com/Benny93/lexigraph/internal/symbols"
)

// Scoring selects how candidates are ranked.
type Scoring string

const (
	// ScoringFrequency scores a content node by the number of distinct
	// matched symbols adjacent to it.
	ScoringFrequency Scoring = "frequency"

	// ScoringWeighted propagates gram-weighted symbol scores, including
	// partial matches, across contains and describes edges.
	ScoringWeighted Scoring = "weighted"
)

// ParseScoring validates a scoring name. Empty selects frequency.
func ParseScoring(s string) (Scoring, bool) {
	switch Scoring(s) {
	case "", ScoringFrequency:
		return ScoringFrequency, true
	case ScoringWeighted:
		return ScoringWeighted, true
	}
	return "", false
}

const (
	partialFactor   = 0.4
	contributionCap = 10.0
)

// propagationWeight is the weight of each edge type scores travel along.
var propagationWeight = map[graph.EdgeType]float64{
	graph.EdgeContains:  1.0,
	graph.EdgeDescribes: 1.2,
}

// scores maps node id to score.
type scores map[string]float64

// cascade finds the first gram size, longest first, whose matched symbols
// reach at least one paragraph or table. Only that level is scored.
func cascade(g *graph.Graph, query symbols.Symbols) (symbols.Gram, scores, scores) {
	for _, gram := range symbols.Grams() {
		syms, elems := make(scores), make(scores)
		seen := make(map[string]struct{})

		for _, symbol := range query[gram] {
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}

			node := g.Node(symbol)
			if node == nil || node.Type != graph.SymbolType(gram) {
				continue
			}
			for _, neighbor := range g.Neighbors(symbol) {
				n := g.Node(neighbor)
				if n == nil || (n.Type != graph.NodeParagraph && n.Type != graph.NodeTable) {
					continue
				}
				elems[neighbor]++
				syms[symbol]++
			}
		}

		if len(elems) > 0 {
			return gram, syms, elems
		}
	}
	return "", scores{}, scores{}
}

// weighted scores every symbol linked to the query plus partially matching
// symbols, then propagates symbol scores to adjacent content nodes.
func weighted(g *graph.Graph, linked []string, unigrams []string) (scores, scores) {
	syms := make(scores)
	for _, symbol := range linked {
		if node := g.Node(symbol); node != nil {
			syms[symbol] = symbols.Gram(node.Type).Weight()
		}
	}

	query := make(map[string]struct{}, len(unigrams))
	for _, u := range unigrams {
		query[u] = struct{}{}
	}

	for u := range query {
		for _, symbol := range g.SymbolsWithToken(u) {
			if _, exact := syms[symbol]; exact {
				continue
			}
			parts := symbols.Split(symbol)
			overlap := 0
			for _, p := range uniq(parts) {
				if _, ok := query[p]; ok {
					overlap++
				}
			}
			if overlap < (len(parts)+1)/2 {
				continue
			}
			node := g.Node(symbol)
			if node == nil {
				continue
			}
			syms[symbol] = symbols.Gram(node.Type).Weight() * partialFactor
		}
	}

	elems := make(scores)
	for symbol, score := range syms {
		for _, edge := range g.Edges(symbol) {
			w, ok := propagationWeight[edge.Type]
			if !ok {
				continue
			}
			target := edge.Other(symbol)
			n := g.Node(target)
			if n == nil || !n.Type.IsContent() {
				continue
			}
			contribution := math.Min(score*w, contributionCap)
			degree := max(g.LexicalDegree(target), 1)
			elems[target] += contribution / math.Sqrt(float64(degree))
		}
	}
	return syms, elems
}

func uniq(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

type ranked struct {
	id    string
	score float64
}

// rank orders scores by score descending, rounded to six places, then id
// ascending, and keeps at most limit entries. A limit of zero or less keeps
// everything.
func rank(s scores, limit int) []ranked {
	out := make([]ranked, 0, len(s))
	for id, score := range s {
		out = append(out, ranked{id: id, score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := round6(out[i].score), round6(out[j].score)
		if a != b {
			return a > b
		}
		return out[i].id < out[j].id
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
