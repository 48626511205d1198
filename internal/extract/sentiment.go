package extract

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var positiveWords = []string{
	"good", "great", "excellent", "positive", "happy", "satisfied", "success", "amazing",
}

var negativeWords = []string{
	"bad", "poor", "negative", "unhappy", "problem", "issue", "concern", "worried",
}

// AnalyzeSentiment is a keyword-count heuristic: whichever polarity has more
// distinct word matches wins, ties are neutral. Pure function of text.
func AnalyzeSentiment(text string) string {
	if text == "" {
		return SentimentNeutral
	}

	words := Keywords(text)
	positive := countPresent(words, positiveWords)
	negative := countPresent(words, negativeWords)

	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
