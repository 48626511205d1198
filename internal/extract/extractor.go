package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

// Per-source extraction confidences. Structured sources score higher than
// address inference, which scores higher than free-text heuristics.
const (
	ConfidenceStakeholder      = 0.9
	ConfidenceEmailPerson      = 0.6
	ConfidenceCallPerson       = 0.7
	ConfidenceEmailEvent       = 0.8
	ConfidenceCallEvent        = 0.8
	ConfidenceInteractionEvent = 0.7
	ConfidenceDocumentEvent    = 0.6
	ConfidenceAccountOrg       = 1.0
)

// Summary truncation limits, in runes.
const (
	emailSummaryLimit    = 200
	callSummaryLimit     = 300
	documentSummaryLimit = 200
)

const defaultAccountName = "unknown"

// Extractor normalizes raw account data into the canonical entity model.
// Extraction is total: it never errors, and missing fields default to empty
// values at the decoding boundary.
type Extractor struct {
	log *zap.Logger
}

func NewExtractor() *Extractor {
	return &Extractor{log: logger.Named("extract")}
}

// Extract runs the full normalization pipeline: per-source extraction, the
// account anchor organization, variant-bucket deduplication, then
// relationship inference over the deduplicated set.
func (e *Extractor) Extract(data AccountData) EntitySet {
	var set EntitySet

	set.People = append(set.People, peopleFromStakeholders(data.Stakeholders)...)
	collectEmails(&set, data.Emails)
	collectCalls(&set, data.Calls)
	collectInteractions(&set, data.Interactions)
	collectDocuments(&set, data.Documents)
	set.Organizations = append(set.Organizations, accountOrganization(data.AccountName))

	set = Dedupe(set)
	set.Relationships = InferRelationships(set)

	e.log.Info("Entity extraction completed",
		zap.String("account", data.AccountName),
		zap.Int("people", len(set.People)),
		zap.Int("organizations", len(set.Organizations)),
		zap.Int("topics", len(set.Topics)),
		zap.Int("events", len(set.Events)),
		zap.Int("relationships", len(set.Relationships)),
	)

	return set
}

func accountOrganization(accountName string) Organization {
	if accountName == "" {
		accountName = defaultAccountName
	}
	return Organization{
		ID:         normalizeNameID(accountName),
		Name:       accountName,
		Type:       "primary_account",
		Industry:   "technology",
		Confidence: ConfidenceAccountOrg,
		Source:     "account_data",
	}
}

func peopleFromStakeholders(stakeholders []Stakeholder) []Person {
	people := make([]Person, 0, len(stakeholders))
	for _, s := range stakeholders {
		if s.Name == "" {
			continue
		}
		influence := s.Influence
		if influence == "" {
			influence = "medium"
		}
		people = append(people, Person{
			ID:           normalizeNameID(s.Name),
			Name:         s.Name,
			Email:        s.Email,
			Role:         s.PersonaType,
			Department:   s.Department,
			Organization: s.Organization,
			Influence:    influence,
			Confidence:   ConfidenceStakeholder,
			Source:       "stakeholder_data",
		})
	}
	return people
}

func collectEmails(set *EntitySet, threads []EmailThread) {
	for _, thread := range threads {
		for _, msg := range thread.Messages {
			participants := addressList(msg.From, msg.To)
			for _, addr := range participants {
				if person, ok := PersonFromEmail(addr); ok {
					set.People = append(set.People, person)
				}
			}

			set.Topics = append(set.Topics, ClassifyTopics(msg.Subject+" "+msg.Body)...)

			set.Events = append(set.Events, Event{
				ID:           "email_" + msg.Timestamp,
				Type:         "email",
				Date:         msg.Timestamp,
				Subject:      msg.Subject,
				Summary:      truncate(msg.Body, emailSummaryLimit),
				Participants: participants,
				Sentiment:    AnalyzeSentiment(msg.Body),
				Confidence:   ConfidenceEmailEvent,
				Source:       "email_data",
			})
		}
	}
}

func collectCalls(set *EntitySet, calls []CallRecord) {
	for _, call := range calls {
		participants := make([]string, 0, len(call.Participants))
		for _, participant := range call.Participants {
			if participant == "" {
				continue
			}
			participants = append(participants, participant)
			set.People = append(set.People, Person{
				ID:         normalizeNameID(participant),
				Name:       participant,
				Confidence: ConfidenceCallPerson,
				Source:     "call_data",
			})
		}

		turns := make([]string, 0, len(call.Transcript))
		for _, turn := range call.Transcript {
			turns = append(turns, turn.Text)
		}
		transcript := strings.Join(turns, " ")

		set.Topics = append(set.Topics, ClassifyTopics(transcript)...)

		id := call.CallID
		if id == "" {
			id = "call_" + call.Date
		}
		set.Events = append(set.Events, Event{
			ID:           id,
			Type:         "call",
			Date:         call.Date,
			Summary:      truncate(transcript, callSummaryLimit),
			Participants: participants,
			Duration:     call.Duration,
			Sentiment:    AnalyzeSentiment(transcript),
			Confidence:   ConfidenceCallEvent,
			Source:       "call_data",
		})
	}
}

func collectInteractions(set *EntitySet, interactions []InteractionRecord) {
	for _, interaction := range interactions {
		participants := make([]string, 0, len(interaction.Participants))
		for _, participant := range interaction.Participants {
			if participant == "" {
				continue
			}
			participants = append(participants, participant)
			if person, ok := PersonFromEmail(participant); ok {
				set.People = append(set.People, person)
			}
		}

		set.Topics = append(set.Topics, ClassifyTopics(interaction.Summary)...)

		eventType := interaction.Type
		if eventType == "" {
			eventType = "interaction"
		}
		sentiment := interaction.Sentiment
		if sentiment == "" {
			sentiment = SentimentNeutral
		}
		set.Events = append(set.Events, Event{
			ID:           "interaction_" + interaction.Date + "_" + interaction.Type,
			Type:         eventType,
			Date:         interaction.Date,
			Summary:      interaction.Summary,
			Participants: participants,
			Sentiment:    sentiment,
			Confidence:   ConfidenceInteractionEvent,
			Source:       "interaction_data",
		})
	}
}

func collectDocuments(set *EntitySet, documents []RawDocument) {
	for _, doc := range documents {
		content := StripHTML(doc.Content)

		set.Topics = append(set.Topics, ClassifyTopics(doc.Title+" "+content)...)

		set.Events = append(set.Events, Event{
			ID:         "document_" + doc.ID,
			Type:       "document",
			Date:       doc.CreatedDate,
			Subject:    doc.Title,
			Summary:    truncate(content, documentSummaryLimit),
			Confidence: ConfidenceDocumentEvent,
			Source:     "document_data",
		})
	}
}

// PersonFromEmail infers a Person from an email address: the id is the
// address with @ and dots rewritten, the name comes from the local part, and
// the organization from the first domain label. Returns false when the
// input does not look like an address.
func PersonFromEmail(address string) (Person, bool) {
	at := strings.Index(address, "@")
	if address == "" || at < 0 {
		return Person{}, false
	}

	local := address[:at]
	domain := address[at+1:]

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	nameParts := make([]string, 0, len(parts))
	for _, part := range parts {
		if isAlpha(part) {
			nameParts = append(nameParts, capitalize(part))
		}
	}
	name := strings.Join(nameParts, " ")
	if name == "" {
		name = local
	}

	org := ""
	if first, _, _ := strings.Cut(domain, "."); first != "" {
		org = capitalize(first)
	}

	return Person{
		ID:           NormalizeEmailID(address),
		Name:         name,
		Email:        address,
		Organization: org,
		Confidence:   ConfidenceEmailPerson,
		Source:       "email_address",
	}, true
}

// NormalizeEmailID derives an id from an email address or participant
// string: @ becomes _at_ and dots become underscores.
func NormalizeEmailID(address string) string {
	id := strings.ReplaceAll(address, "@", "_at_")
	return strings.ReplaceAll(id, ".", "_")
}

// normalizeNameID derives an id from a display name.
func normalizeNameID(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

func addressList(from string, to []string) []string {
	addresses := make([]string, 0, len(to)+1)
	if from != "" {
		addresses = append(addresses, from)
	}
	for _, addr := range to {
		if addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z') {
			return false
		}
	}
	return true
}

// truncate caps text at limit runes, appending an ellipsis when trimmed.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// StripHTML reduces markup-bearing document content to its text. Plain text
// passes through untouched.
func StripHTML(content string) string {
	if !strings.Contains(content, "<") || !strings.Contains(content, ">") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
