package extract

import (
	"fmt"
	"regexp"
)

// RelationType is the closed vocabulary of graph edge types. Types are
// validated before they are ever interpolated into a Cypher pattern, so a
// value that fails Valid must never reach the graph store.
type RelationType string

const (
	RelWorksFor       RelationType = "WORKS_FOR"
	RelParticipatedIn RelationType = "PARTICIPATED_IN"
	RelDiscussed      RelationType = "DISCUSSED"
	RelMentionedIn    RelationType = "MENTIONED_IN"
	RelMemberOf       RelationType = "MEMBER_OF"

	// Account anchor edges, one per entity variant.
	RelAssociatedWith RelationType = "ASSOCIATED_WITH"
	RelRelatedTo      RelationType = "RELATED_TO"
	RelDiscussedIn    RelationType = "DISCUSSED_IN"
	RelOccurredIn     RelationType = "OCCURRED_IN"
)

var hopRelationPattern = regexp.MustCompile(`^CONNECTED_AT_HOP_[0-9]+$`)

func (t RelationType) Valid() bool {
	switch t {
	case RelWorksFor, RelParticipatedIn, RelDiscussed, RelMentionedIn,
		RelMemberOf, RelAssociatedWith, RelRelatedTo, RelDiscussedIn,
		RelOccurredIn:
		return true
	}
	return hopRelationPattern.MatchString(string(t))
}

func (t RelationType) String() string {
	return string(t)
}

// HopRelation names the synthetic edge family asserted by multi-hop
// reasoning insights, e.g. CONNECTED_AT_HOP_2.
func HopRelation(distance int) RelationType {
	return RelationType(fmt.Sprintf("CONNECTED_AT_HOP_%d", distance))
}

// Relationship is a directed, typed, weighted edge between two entity ids.
// Endpoints are not required to exist in the entity set; the graph store
// resolves them by id match at write time.
type Relationship struct {
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Type     RelationType `json:"type"`
	Strength float64      `json:"strength"`
	Context  string       `json:"context,omitempty"`
}
