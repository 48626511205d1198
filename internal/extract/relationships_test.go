package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferRelationships_ParticipationUsesEmailNormalization(t *testing.T) {
	set := EntitySet{
		Events: []Event{
			{ID: "email_t1", Type: "email", Participants: []string{"jane@acme.com", "bob@dev.io"}},
		},
	}

	rels := InferRelationships(set)

	require.Len(t, rels, 2)
	assert.Equal(t, "jane_at_acme_com", rels[0].Source)
	assert.Equal(t, "email_t1", rels[0].Target)
	assert.Equal(t, RelParticipatedIn, rels[0].Type)
	assert.InDelta(t, StrengthParticipatedIn, rels[0].Strength, 1e-9)
	assert.Equal(t, "email", rels[0].Context)
	assert.Equal(t, "bob_at_dev_io", rels[1].Source)
}

func TestInferRelationships_DiscussedCarriesImportance(t *testing.T) {
	set := EntitySet{
		Topics: []Topic{
			{ID: "topic_pricing", Category: "pricing", Importance: 0.25},
			{ID: "custom_road_map", Category: "custom", Importance: 0.5},
		},
		Events: []Event{
			{ID: "email_t1", Type: "email", Subject: "Pricing proposal", Summary: "budget review attached"},
			{ID: "call_c1", Type: "call", Summary: "no relevant words"},
		},
	}

	rels := InferRelationships(set)

	// Custom topics have no keyword list, so only the pricing edge exists,
	// and only from the event whose text mentions pricing keywords.
	require.Len(t, rels, 1)
	rel := rels[0]
	assert.Equal(t, "email_t1", rel.Source)
	assert.Equal(t, "topic_pricing", rel.Target)
	assert.Equal(t, RelDiscussed, rel.Type)
	assert.InDelta(t, 0.25, rel.Strength, 1e-9)
}

func TestInferRelationships_Pure(t *testing.T) {
	set := EntitySet{
		People: []Person{{ID: "jane_doe", Organization: "Acme Corp"}},
		Topics: []Topic{{ID: "topic_support", Category: "support", Importance: 0.5}},
		Events: []Event{
			{ID: "e1", Type: "email", Subject: "support issue", Participants: []string{"jane@acme.com"}},
		},
	}

	first := InferRelationships(set)
	second := InferRelationships(set)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "acme_corp", first[0].Target)
}

func TestRelationType_Valid(t *testing.T) {
	tests := []struct {
		name string
		typ  RelationType
		want bool
	}{
		{"works for", RelWorksFor, true},
		{"member of", RelMemberOf, true},
		{"account anchor", RelOccurredIn, true},
		{"hop relation", HopRelation(3), true},
		{"hop relation zero", HopRelation(0), true},
		{"unknown type", RelationType("FRIENDS_WITH"), false},
		{"injection attempt", RelationType("X]->() MATCH (n) DETACH DELETE n//"), false},
		{"malformed hop", RelationType("CONNECTED_AT_HOP_"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Valid())
		})
	}
}
