package agents

import "strings"

// positiveKeywords and negativeKeywords drive the collector's deterministic
// sentiment lexicon rule (spec §4.7: "a simple lexicon rule... explicit and
// deterministic, not an LLM call").
var (
	negativeKeywords = []string{
		"fraud", "scandal", "lawsuit", "bankrupt", "bankruptcy", "investigation",
		"fine", "penalty", "violation", "sanction", "debt", "default", "scam",
		"corruption", "sued", "liquidation", "fired", "layoff", "scrutiny", "probe",
	}
	positiveKeywords = []string{
		"award", "growth", "profit", "success", "expansion", "partnership",
		"innovation", "leader", "excellence", "achievement", "recognized",
		"thriving", "milestone", "record revenue",
	}
)

// classifySentiment scores a snippet's text/title by counting keyword hits
// from each list; the larger count wins, ties are neutral.
func classifySentiment(title, text string) string {
	combined := strings.ToLower(title + " " + text)
	neg := countHits(combined, negativeKeywords)
	pos := countHits(combined, positiveKeywords)
	switch {
	case neg > pos:
		return "negative"
	case pos > neg:
		return "positive"
	default:
		return "neutral"
	}
}

func countHits(haystack string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(haystack, k) {
			n++
		}
	}
	return n
}
