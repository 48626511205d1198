package extract

// Dedupe collapses entities sharing an id within each variant bucket.
//
// Merge policy: the first-seen record wins; empty string fields on it are
// filled from later duplicates, and numeric evidence (confidence, topic
// importance, keyword matches) takes the maximum seen. The policy is
// deterministic and idempotent: running Dedupe on its own output is a no-op.
func Dedupe(set EntitySet) EntitySet {
	set.People = dedupePeople(set.People)
	set.Organizations = dedupeOrganizations(set.Organizations)
	set.Topics = dedupeTopics(set.Topics)
	set.Events = dedupeEvents(set.Events)
	return set
}

func dedupePeople(people []Person) []Person {
	index := make(map[string]int, len(people))
	out := make([]Person, 0, len(people))
	for _, p := range people {
		i, seen := index[p.ID]
		if !seen {
			index[p.ID] = len(out)
			out = append(out, p)
			continue
		}
		kept := &out[i]
		fillString(&kept.Name, p.Name)
		fillString(&kept.Email, p.Email)
		fillString(&kept.Role, p.Role)
		fillString(&kept.Department, p.Department)
		fillString(&kept.Organization, p.Organization)
		fillString(&kept.Influence, p.Influence)
		fillString(&kept.Source, p.Source)
		kept.Confidence = maxFloat(kept.Confidence, p.Confidence)
	}
	return out
}

func dedupeOrganizations(orgs []Organization) []Organization {
	index := make(map[string]int, len(orgs))
	out := make([]Organization, 0, len(orgs))
	for _, o := range orgs {
		i, seen := index[o.ID]
		if !seen {
			index[o.ID] = len(out)
			out = append(out, o)
			continue
		}
		kept := &out[i]
		fillString(&kept.Name, o.Name)
		fillString(&kept.Type, o.Type)
		fillString(&kept.Industry, o.Industry)
		fillString(&kept.Source, o.Source)
		kept.Confidence = maxFloat(kept.Confidence, o.Confidence)
	}
	return out
}

func dedupeTopics(topics []Topic) []Topic {
	index := make(map[string]int, len(topics))
	out := make([]Topic, 0, len(topics))
	for _, t := range topics {
		i, seen := index[t.ID]
		if !seen {
			index[t.ID] = len(out)
			out = append(out, t)
			continue
		}
		kept := &out[i]
		fillString(&kept.Name, t.Name)
		fillString(&kept.Category, t.Category)
		fillString(&kept.Source, t.Source)
		kept.Importance = maxFloat(kept.Importance, t.Importance)
		if t.KeywordMatches > kept.KeywordMatches {
			kept.KeywordMatches = t.KeywordMatches
		}
		kept.Confidence = maxFloat(kept.Confidence, t.Confidence)
	}
	return out
}

func dedupeEvents(events []Event) []Event {
	index := make(map[string]int, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		i, seen := index[e.ID]
		if !seen {
			index[e.ID] = len(out)
			out = append(out, e)
			continue
		}
		kept := &out[i]
		fillString(&kept.Type, e.Type)
		fillString(&kept.Date, e.Date)
		fillString(&kept.Subject, e.Subject)
		fillString(&kept.Summary, e.Summary)
		fillString(&kept.Duration, e.Duration)
		fillString(&kept.Sentiment, e.Sentiment)
		fillString(&kept.Source, e.Source)
		if len(kept.Participants) == 0 {
			kept.Participants = e.Participants
		}
		kept.Confidence = maxFloat(kept.Confidence, e.Confidence)
	}
	return out
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}
