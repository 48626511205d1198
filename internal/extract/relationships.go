package extract

// Relationship strengths for directly inferred edges. DISCUSSED edges carry
// the topic's importance instead of a fixed strength.
const (
	StrengthWorksFor       = 0.8
	StrengthParticipatedIn = 0.9
)

// InferRelationships derives typed edges from a deduplicated entity set. It
// is a pure function of its input and never consults the graph store, so
// endpoints may reference entities that only exist in the graph (or nowhere
// yet); the store resolves ids at write time.
func InferRelationships(set EntitySet) []Relationship {
	var rels []Relationship

	for _, person := range set.People {
		if person.Organization == "" {
			continue
		}
		rels = append(rels, Relationship{
			Source:   person.ID,
			Target:   normalizeNameID(person.Organization),
			Type:     RelWorksFor,
			Strength: StrengthWorksFor,
			Context:  "employment",
		})
	}

	for _, event := range set.Events {
		for _, participant := range event.Participants {
			if participant == "" {
				continue
			}
			rels = append(rels, Relationship{
				Source:   NormalizeEmailID(participant),
				Target:   event.ID,
				Type:     RelParticipatedIn,
				Strength: StrengthParticipatedIn,
				Context:  event.Type,
			})
		}
	}

	for _, event := range set.Events {
		words := Keywords(event.Subject + " " + event.Summary)
		for _, topic := range set.Topics {
			keywords, fixed := topicCategories[topic.Category]
			if !fixed || countPresent(words, keywords) == 0 {
				continue
			}
			rels = append(rels, Relationship{
				Source:   event.ID,
				Target:   topic.ID,
				Type:     RelDiscussed,
				Strength: topic.Importance,
				Context:  "topic_discussion",
			})
		}
	}

	return rels
}
