package insight

import (
	"fmt"
	"sort"
	"strings"
)

const (
	dedupeSummaryLen = 50
	summaryTopN      = 5
	summaryFindings  = 3
)

// Rank deduplicates candidates on (type, first 50 summary characters),
// keeping the first occurrence, then stable-sorts by confidence
// descending so equal-confidence insights preserve input order.
func Rank(candidates []Insight) []Insight {
	seen := make(map[string]bool)
	unique := make([]Insight, 0, len(candidates))

	for _, candidate := range candidates {
		key := dedupeKey(candidate)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, candidate)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Confidence > unique[j].Confidence
	})

	return unique
}

func dedupeKey(i Insight) string {
	summary := []rune(i.Summary)
	if len(summary) > dedupeSummaryLen {
		summary = summary[:dedupeSummaryLen]
	}
	return i.Type + "_" + string(summary)
}

// ExecutiveSummary condenses a ranked insight list into one short
// paragraph: total count plus the first three findings among the top
// five.
func ExecutiveSummary(ranked []Insight) string {
	if len(ranked) == 0 {
		return "No significant insights generated from GraphRAG analysis."
	}

	window := summaryTopN
	if len(ranked) < window {
		window = len(ranked)
	}

	findings := make([]string, 0, summaryFindings)
	for _, insight := range ranked[:window] {
		if insight.Summary == "" {
			continue
		}
		findings = append(findings, insight.Summary)
	}
	if len(findings) > summaryFindings {
		findings = findings[:summaryFindings]
	}

	return fmt.Sprintf(
		"GraphRAG analysis identified %d insights across multiple dimensions. Key findings include: %s. Analysis demonstrates strong cross-source correlations and multi-dimensional relationship patterns.",
		len(ranked),
		strings.Join(findings, "; "),
	)
}

// CountByCategory tallies insights per category tag over the full
// ranked list, including categories with zero hits.
func CountByCategory(insights []Insight, categories []string) map[string]int {
	counts := make(map[string]int, len(categories))
	for _, category := range categories {
		counts[category] = 0
	}
	for _, insight := range insights {
		if _, ok := counts[insight.Category]; ok {
			counts[insight.Category]++
		}
	}
	return counts
}
