package keyword

// stopwords are high-frequency english tokens that carry no ranking signal.
// Tokens shorter than three characters never reach this filter because the
// tokenizer drops them first.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "day": true,
	"get": true, "has": true, "him": true, "his": true, "how": true,
	"its": true, "may": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "boy": true,
	"did": true, "let": true, "put": true, "say": true, "she": true,
	"too": true, "use": true,
}

// IsStopword reports whether a lowercased token is filtered from ranking.
func IsStopword(token string) bool {
	return stopwords[token]
}
