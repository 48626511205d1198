package extract

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Topic classification is a keyword-category heuristic: each fixed category
// scores by how many of its keywords occur in the text as whole words.

const (
	topicBaseConfidence  = 0.3
	topicConfidenceSlope = 0.7

	customTopicImportance = 0.5
	customTopicConfidence = 0.4
	maxCustomTopics       = 5
)

// topicCategoryOrder fixes output order; map iteration alone would make
// classification nondeterministic.
var topicCategoryOrder = []string{
	"pricing", "technical", "security", "support",
	"business", "product", "timeline", "meeting",
}

var topicCategories = map[string][]string{
	"pricing":   {"price", "cost", "budget", "pricing", "discount", "fee", "payment", "invoice"},
	"technical": {"api", "integration", "development", "technical", "code", "system", "platform"},
	"security":  {"security", "compliance", "privacy", "audit", "encryption", "authentication"},
	"support":   {"support", "help", "issue", "problem", "bug", "maintenance", "troubleshoot"},
	"business":  {"business", "strategy", "growth", "revenue", "expansion", "partnership"},
	"product":   {"product", "feature", "functionality", "capability", "solution", "offering"},
	"timeline":  {"timeline", "schedule", "deadline", "delivery", "launch", "implementation"},
	"meeting":   {"meeting", "call", "discussion", "presentation", "demo", "review"},
}

// Capitalized two-to-three-word phrases become low-confidence custom topics.
var customTopicPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+){1,2}\b`)

// Keywords returns the lowercased word set of text, splitting on any
// non-alphanumeric rune. Shared by topic classification, sentiment, and
// retrieval overlap scoring so "keyword match" means one thing everywhere.
func Keywords(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func countPresent(words map[string]bool, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if words[kw] {
			n++
		}
	}
	return n
}

// ClassifyTopics scores text against every fixed category and scans for
// capitalized phrases. Deterministic and side-effect free; empty text yields
// no topics.
func ClassifyTopics(text string) []Topic {
	if text == "" {
		return nil
	}

	words := Keywords(text)
	var topics []Topic

	for _, category := range topicCategoryOrder {
		keywords := topicCategories[category]
		matches := countPresent(words, keywords)
		if matches == 0 {
			continue
		}
		importance := math.Min(float64(matches)/float64(len(keywords)), 1.0)
		topics = append(topics, Topic{
			ID:             "topic_" + category,
			Name:           capitalize(category),
			Category:       category,
			Importance:     importance,
			KeywordMatches: matches,
			Confidence:     math.Min(topicBaseConfidence+importance*topicConfidenceSlope, 1.0),
			Source:         "text_analysis",
		})
	}

	phrases := customTopicPattern.FindAllString(text, -1)
	if len(phrases) > maxCustomTopics {
		phrases = phrases[:maxCustomTopics]
	}
	for _, phrase := range phrases {
		topics = append(topics, Topic{
			ID:         "custom_" + strings.Join(strings.Fields(strings.ToLower(phrase)), "_"),
			Name:       phrase,
			Category:   "custom",
			Importance: customTopicImportance,
			Confidence: customTopicConfidence,
			Source:     "phrase_extraction",
		})
	}

	return topics
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	head := strings.ToUpper(string(runes[0]))
	return head + strings.ToLower(string(runes[1:]))
}
