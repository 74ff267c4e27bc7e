// Package query implements lookup and search over the node store.
//
// A query string is first classified: strings shaped like system node IDs
// resolve by direct lookup, everything else runs the content-search path
// with a pluggable relevance scorer. The classifier is an explicit function
// returning a tagged result so the heuristic stays contained and testable.
package query

import "strings"

// Kind tags the outcome of classifying a query string.
type Kind int

const (
	// KindContentQuery runs the search path with filtering and ranking.
	KindContentQuery Kind = iota
	// KindExactID resolves by direct node lookup.
	KindExactID
	// KindWildcard lists nodes without ranking ("*", "%", "all").
	KindWildcard
)

// Classification is the tagged result of Classify.
type Classification struct {
	Kind Kind
	// ID holds the probe target for KindExactID.
	ID string
	// Text holds the query text for KindContentQuery.
	Text string
}

// DefaultIDPrefixes are the system prefixes that always mark a string as a
// node ID probe. Deployments can extend the set via configuration.
var DefaultIDPrefixes = []string{"metric_", "audit_", "log_", "dream_schedule_"}

// minDigitRun is the embedded-epoch heuristic: system IDs carry unix
// timestamps, which at current epochs are runs of 10 digits.
const minDigitRun = 10

// Classify decides how a query string executes. A string is an exact-ID
// probe when it starts with a recognized system prefix, or when it contains
// an underscore together with a run of at least ten consecutive digits.
// extraPrefixes extends DefaultIDPrefixes.
func Classify(text string, extraPrefixes []string) Classification {
	switch text {
	case "*", "%", "all":
		return Classification{Kind: KindWildcard}
	}

	for _, prefix := range DefaultIDPrefixes {
		if strings.HasPrefix(text, prefix) {
			return Classification{Kind: KindExactID, ID: text}
		}
	}
	for _, prefix := range extraPrefixes {
		if prefix != "" && strings.HasPrefix(text, prefix) {
			return Classification{Kind: KindExactID, ID: text}
		}
	}

	if strings.Contains(text, "_") && hasDigitRun(text, minDigitRun) {
		return Classification{Kind: KindExactID, ID: text}
	}

	return Classification{Kind: KindContentQuery, Text: text}
}

// hasDigitRun reports whether s contains at least n consecutive ASCII digits.
func hasDigitRun(s string, n int) bool {
	run := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
