package insight

import (
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
)

// Insight type names, one per analyzer.
const (
	TypeCrossSourceCorrelation = "cross_source_correlation"
	TypeCommunityInfluence     = "community_influence"
	TypeTemporalEvolution      = "temporal_evolution"
	TypeMultiHopReasoning      = "multi_hop_reasoning"
	TypeSemanticAlignment      = "semantic_structural_alignment"
)

// Evidence is one structured supporting fact. Its shape is analyzer
// specific and write-only: nothing downstream branches on the contents.
type Evidence map[string]any

// AssertedRelation is a relationship claimed by an insight rather than
// observed in the source data, e.g. community membership or synthetic
// hop connections.
type AssertedRelation struct {
	Source string               `json:"source"`
	Target string               `json:"target"`
	Type   extract.RelationType `json:"type"`
}

// Insight is the terminal output unit of the pipeline: a typed,
// confidence-scored analytical claim with its supporting evidence.
// Insights are immutable once ranked.
type Insight struct {
	Type          string             `json:"type"`
	Category      string             `json:"category,omitempty"`
	Confidence    float64            `json:"confidence"`
	Evidence      []Evidence         `json:"evidence"`
	Relationships []AssertedRelation `json:"relationships"`
	Summary       string             `json:"summary"`
}

// ApplyWeight returns a copy scaled by a caller-supplied importance
// weight and tagged with the analytical category that produced it.
func (i Insight) ApplyWeight(weight float64, category string) Insight {
	i.Confidence *= weight
	i.Category = category
	return i
}
