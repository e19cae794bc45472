package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/osintgraph/pkg/types"
)

// summarize renders a one-paragraph description of a result: entity and
// relationship counts broken down by kind, the cluster count, the strongest
// cluster and the average confidence.
func summarize(result *types.CorrelationResult) string {
	if len(result.Entities) == 0 {
		return "No entities to correlate."
	}

	entityKinds := make(map[string]int)
	for _, e := range result.Entities {
		entityKinds[string(e.Kind)]++
	}
	relKinds := make(map[string]int)
	for _, r := range result.Relationships {
		relKinds[string(r.Kind)]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Correlated %d %s (%s)", len(result.Entities), plural(len(result.Entities), "entity", "entities"), breakdown(entityKinds))
	if len(result.Relationships) == 0 {
		b.WriteString("; no relationships found.")
		return b.String()
	}
	fmt.Fprintf(&b, " with %d %s (%s).", len(result.Relationships),
		plural(len(result.Relationships), "relationship", "relationships"), breakdown(relKinds))

	if len(result.Clusters) == 0 {
		b.WriteString(" No clusters formed.")
	} else {
		strongest := result.Clusters[0]
		for _, c := range result.Clusters[1:] {
			if c.Confidence > strongest.Confidence {
				strongest = c
			}
		}
		fmt.Fprintf(&b, " %d %s found; strongest groups %d entities around %s (confidence %.1f).",
			len(result.Clusters), plural(len(result.Clusters), "cluster", "clusters"),
			len(strongest.Entities), strongest.Representative, strongest.Confidence)
	}
	fmt.Fprintf(&b, " Average confidence %.1f.", result.ConfidenceAverage)
	return b.String()
}

// breakdown formats counts as "2 account, 1 email" sorted by kind.
func breakdown(counts map[string]int) string {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
