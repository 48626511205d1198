package insight

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/retrieval"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

// Analyzer tuning. Confidence values are fixed per analyzer and not on a
// calibrated common scale; ranking across analyzer types is a rough
// ordering only.
const (
	correlationEntityWeight = 0.2
	minCorrelatedEntities   = 2
	summaryEntityPreview    = 3

	communityConfidence = 0.8
	maxCommunities      = 3
	minCommunitySize    = 3
	maxMemberRelations  = 5
	strongCommunitySize = 5

	temporalConfidence = 0.7
	minTimestamps      = 3

	multiHopConfidence = 0.6
	maxHopRelations    = 5

	alignmentScoreFloor  = 0.7
	alignmentWindow      = 5
	alignmentMaxDistance = 2
	minAlignedEntities   = 2
)

type analyzer struct {
	name string
	run  func(*retrieval.Result) []Insight
}

var analyzers = []analyzer{
	{TypeCrossSourceCorrelation, analyzeCrossSourceCorrelation},
	{TypeCommunityInfluence, analyzeCommunityPatterns},
	{TypeTemporalEvolution, analyzeTemporalPatterns},
	{TypeMultiHopReasoning, analyzeMultiHopReasoning},
	{TypeSemanticAlignment, analyzeSemanticAlignment},
}

// Synthesize runs every analyzer over one retrieval result. Analyzers
// are independent: an empty return means no signal, and a panicking
// analyzer contributes nothing without blocking the others.
func Synthesize(res *retrieval.Result) []Insight {
	insights := make([]Insight, 0)
	for _, a := range analyzers {
		insights = append(insights, runGuarded(a, res)...)
	}
	return insights
}

func runGuarded(a analyzer, res *retrieval.Result) (out []Insight) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Insight analyzer panicked",
				zap.String("analyzer", a.name),
				zap.Any("panic", r),
			)
			out = nil
		}
	}()
	return a.run(res)
}

// analyzeCrossSourceCorrelation looks for graph entities whose names
// surface in semantic hit text, evidence that the two sources agree.
func analyzeCrossSourceCorrelation(res *retrieval.Result) []Insight {
	if len(res.SemanticHits) == 0 || len(res.GraphContext) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	correlated := make([]string, 0)

	for _, hit := range res.SemanticHits {
		text := strings.ToLower(hit.Text)
		for _, entity := range res.GraphContext {
			name := strings.TrimSpace(entity.Name)
			if name == "" {
				continue
			}
			lower := strings.ToLower(name)
			if seen[lower] || !strings.Contains(text, lower) {
				continue
			}
			seen[lower] = true
			correlated = append(correlated, name)
		}
	}

	if len(correlated) < minCorrelatedEntities {
		return nil
	}

	preview := correlated
	if len(preview) > summaryEntityPreview {
		preview = preview[:summaryEntityPreview]
	}

	return []Insight{{
		Type:       TypeCrossSourceCorrelation,
		Confidence: math.Min(float64(len(correlated))*correlationEntityWeight, 1.0),
		Evidence: []Evidence{{
			"type":                 "entity_mention",
			"entities":             correlated,
			"correlation_strength": len(correlated),
		}},
		Relationships: []AssertedRelation{},
		Summary: fmt.Sprintf("Found %d entities correlated across semantic search and graph data: %s",
			len(correlated), strings.Join(preview, ", ")),
	}}
}

// analyzeCommunityPatterns summarizes the composition of the largest
// detected communities and asserts membership edges.
func analyzeCommunityPatterns(res *retrieval.Result) []Insight {
	insights := make([]Insight, 0)

	limit := maxCommunities
	if len(res.Communities) < limit {
		limit = len(res.Communities)
	}

	for _, community := range res.Communities[:limit] {
		if len(community.Members) < minCommunitySize {
			continue
		}

		people, organizations := 0, 0
		for _, member := range community.Members {
			if hasLabel(member.Labels, "Person") {
				people++
			}
			if hasLabel(member.Labels, "Organization") {
				organizations++
			}
		}

		relations := make([]AssertedRelation, 0, maxMemberRelations)
		for _, member := range community.Members {
			if len(relations) == maxMemberRelations {
				break
			}
			relations = append(relations, AssertedRelation{
				Source: member.ID,
				Target: fmt.Sprintf("community_%d", community.ID),
				Type:   extract.RelMemberOf,
			})
		}

		network := "moderate"
		if len(community.Members) > strongCommunitySize {
			network = "strong"
		}

		insights = append(insights, Insight{
			Type:       TypeCommunityInfluence,
			Confidence: communityConfidence,
			Evidence: []Evidence{{
				"type":          "community_composition",
				"people":        people,
				"organizations": organizations,
				"total_members": len(community.Members),
			}},
			Relationships: relations,
			Summary: fmt.Sprintf("Community %d contains %d people and %d organizations, indicating a %s influence network",
				community.ID, people, organizations, network),
		})
	}

	return insights
}

// analyzeTemporalPatterns counts timestamped semantic hits as a proxy
// for engagement cadence.
func analyzeTemporalPatterns(res *retrieval.Result) []Insight {
	count := 0
	for _, hit := range res.SemanticHits {
		if _, ok := hit.Metadata["timestamp"]; ok {
			count++
			continue
		}
		if _, ok := hit.Metadata["date"]; ok {
			count++
		}
	}

	if count < minTimestamps {
		return nil
	}

	return []Insight{{
		Type:       TypeTemporalEvolution,
		Confidence: temporalConfidence,
		Evidence: []Evidence{{
			"type":        "temporal_distribution",
			"event_count": count,
			"time_span":   "recent_activity",
		}},
		Relationships: []AssertedRelation{},
		Summary:       fmt.Sprintf("Identified %d timestamped interactions showing active engagement pattern", count),
	}}
}

// analyzeMultiHopReasoning fires when graph context spans more than one
// hop distance, asserting synthetic hop edges from the query context.
func analyzeMultiHopReasoning(res *retrieval.Result) []Insight {
	if len(res.GraphContext) == 0 {
		return nil
	}

	perHop := make(map[int]int)
	maxDistance := 0
	for _, entity := range res.GraphContext {
		perHop[entity.Distance]++
		if entity.Distance > maxDistance {
			maxDistance = entity.Distance
		}
	}

	if len(perHop) <= 1 {
		return nil
	}

	entitiesPerHop := make(map[string]int, len(perHop))
	for distance, n := range perHop {
		entitiesPerHop[strconv.Itoa(distance)] = n
	}

	relations := make([]AssertedRelation, 0, maxHopRelations)
	for _, entity := range res.GraphContext {
		if len(relations) == maxHopRelations {
			break
		}
		relations = append(relations, AssertedRelation{
			Source: "query_context",
			Target: entity.ID,
			Type:   extract.HopRelation(entity.Distance),
		})
	}

	return []Insight{{
		Type:       TypeMultiHopReasoning,
		Confidence: multiHopConfidence,
		Evidence: []Evidence{{
			"type":             "hop_analysis",
			"max_hops":         maxDistance,
			"entities_per_hop": entitiesPerHop,
		}},
		Relationships: relations,
		Summary: fmt.Sprintf("Multi-hop reasoning found %d connected entities within %d degrees of separation",
			len(res.GraphContext), maxDistance),
	}}
}

// analyzeSemanticAlignment checks whether the strongest hybrid hits also
// mention nearby graph entities, i.e. semantic similarity and graph
// structure point the same way.
func analyzeSemanticAlignment(res *retrieval.Result) []Insight {
	window := alignmentWindow
	if len(res.HybridHits) < window {
		window = len(res.HybridHits)
	}
	if window == 0 {
		return nil
	}

	aligned := 0
	for _, hit := range res.HybridHits[:window] {
		if hit.HybridScore <= alignmentScoreFloor {
			continue
		}

		text := strings.ToLower(hit.Text)
		for _, entity := range res.GraphContext {
			name := strings.ToLower(strings.TrimSpace(entity.Name))
			if name == "" || entity.Distance > alignmentMaxDistance {
				continue
			}
			if strings.Contains(text, name) {
				aligned++
				break
			}
		}
	}

	if aligned < minAlignedEntities {
		return nil
	}

	strength := float64(aligned) / float64(window)

	return []Insight{{
		Type:       TypeSemanticAlignment,
		Confidence: strength,
		Evidence: []Evidence{{
			"type":               "alignment_analysis",
			"aligned_entities":   aligned,
			"alignment_strength": strength,
		}},
		Relationships: []AssertedRelation{},
		Summary:       fmt.Sprintf("Strong alignment between semantic similarity and graph relationships found in %d cases", aligned),
	}}
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
