package extract

import "encoding/json"

// AccountData is the raw, heterogeneous input for one account. Decoding is
// tolerant: a malformed element in any source collection is dropped rather
// than failing the whole payload, and a field that is not a list decodes as
// empty. Defaulting rules live here so downstream logic never re-checks
// field presence.
type AccountData struct {
	AccountName  string          `json:"accountName"`
	Stakeholders StakeholderList `json:"stakeholders"`
	Emails       ThreadList      `json:"emails"`
	Calls        CallList        `json:"calls"`
	Interactions InteractionList `json:"interactions"`
	Documents    DocumentList    `json:"documents"`
}

type Stakeholder struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PersonaType  string `json:"persona_type"`
	Department   string `json:"department"`
	Organization string `json:"organization"`
	Influence    string `json:"influence"`
}

type EmailThread struct {
	ThreadID string      `json:"thread_id"`
	Messages MessageList `json:"messages"`
}

type EmailMessage struct {
	From      string     `json:"from"`
	To        StringList `json:"to"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Timestamp string     `json:"timestamp"`
}

type CallRecord struct {
	CallID       string     `json:"call_id"`
	Date         string     `json:"date"`
	Duration     string     `json:"duration"`
	Participants StringList `json:"participants"`
	Transcript   TurnList   `json:"transcript"`
}

type TranscriptTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type InteractionRecord struct {
	Type         string     `json:"type"`
	Date         string     `json:"date"`
	Summary      string     `json:"summary"`
	Sentiment    string     `json:"sentiment"`
	Participants StringList `json:"participants"`
}

type RawDocument struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	CreatedDate string `json:"created_date"`
}

// decodeEach unmarshals a JSON array element by element, dropping elements
// that do not decode into T (including nulls). A non-array yields nil.
func decodeEach[T any](data []byte) []T {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v *T
		if err := json.Unmarshal(item, &v); err != nil || v == nil {
			continue
		}
		out = append(out, *v)
	}
	return out
}

type StakeholderList []Stakeholder

func (l *StakeholderList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[Stakeholder](data)
	return nil
}

type ThreadList []EmailThread

func (l *ThreadList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[EmailThread](data)
	return nil
}

type MessageList []EmailMessage

func (l *MessageList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[EmailMessage](data)
	return nil
}

type CallList []CallRecord

func (l *CallList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[CallRecord](data)
	return nil
}

type TurnList []TranscriptTurn

func (l *TurnList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[TranscriptTurn](data)
	return nil
}

type InteractionList []InteractionRecord

func (l *InteractionList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[InteractionRecord](data)
	return nil
}

type DocumentList []RawDocument

func (l *DocumentList) UnmarshalJSON(data []byte) error {
	*l = decodeEach[RawDocument](data)
	return nil
}

// StringList accepts either a single JSON string or an array of strings;
// non-string array elements are dropped.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	*l = decodeEach[string](data)
	return nil
}
