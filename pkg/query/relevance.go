package query

import (
	"fmt"
	"strings"

	"github.com/graphmem/graphmem/pkg/memory"
)

// Scorer ranks a node against a free-text query.
//
// Contract: deterministic given the same node and query, returns a value in
// [0, 1], higher means more relevant. Implementations backed by embedding
// services plug in here; the core never assumes one exists.
type Scorer interface {
	Score(query string, node memory.GraphNode) float64
}

// TokenOverlap is the default Scorer: the fraction of query tokens that
// appear among the node's tokens (ID, type, attribute keys, and stringified
// attribute values, lowercased). Crude, but deterministic and dependency-free.
type TokenOverlap struct{}

// Score implements Scorer.
func (TokenOverlap) Score(query string, node memory.GraphNode) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	nodeTokens := make(map[string]struct{})
	addTokens(nodeTokens, node.ID)
	addTokens(nodeTokens, node.Type)
	for key, value := range node.Attributes {
		addTokens(nodeTokens, key)
		addTokens(nodeTokens, fmt.Sprintf("%v", value))
	}

	matched := 0
	for _, tok := range queryTokens {
		if _, ok := nodeTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func addTokens(set map[string]struct{}, s string) {
	for _, tok := range tokenize(s) {
		set[tok] = struct{}{}
	}
}

// Ensure TokenOverlap implements Scorer.
var _ Scorer = TokenOverlap{}
