package extract

// Canonical entity variants produced by extraction. Two observations of the
// same real-world thing must derive the same ID; the deduplicator relies on
// that to merge them.

type Person struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	Role         string  `json:"role,omitempty"`
	Department   string  `json:"department,omitempty"`
	Organization string  `json:"organization,omitempty"`
	Influence    string  `json:"influence,omitempty"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"`
}

type Organization struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type,omitempty"`
	Industry   string  `json:"industry,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

type Topic struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Importance     float64 `json:"importance"`
	KeywordMatches int     `json:"keyword_matches,omitempty"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source"`
}

type Event struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Date         string   `json:"date"`
	Subject      string   `json:"subject,omitempty"`
	Summary      string   `json:"summary"`
	Participants []string `json:"participants,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	Sentiment    string   `json:"sentiment,omitempty"`
	Confidence   float64  `json:"confidence"`
	Source       string   `json:"source"`
}

// EntitySet is the canonical output of one extraction run: deduplicated
// entities per variant plus the relationships inferred between them.
type EntitySet struct {
	People        []Person       `json:"people"`
	Organizations []Organization `json:"organizations"`
	Topics        []Topic        `json:"topics"`
	Events        []Event        `json:"events"`
	Relationships []Relationship `json:"relationships"`
}

func (s EntitySet) EntityCount() int {
	return len(s.People) + len(s.Organizations) + len(s.Topics) + len(s.Events)
}
