package ollama

import (
	"encoding/json"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

func buildExtractionPrompt(query string, prior *domain.Requirement) string {
	const maxQuery = 2000
	if len(query) > maxQuery {
		query = query[:maxQuery]
	}

	prompt := `You extract structured property search filters from one user message.
Return a strict JSON object with keys:
property_type (string, lowercase, e.g. "condo", "apartment", "house", empty if not mentioned),
transaction_type ("buy", "rent" or empty),
district (string, empty if not mentioned),
city (string, empty if not mentioned),
bedrooms_min (number or null), bedrooms_max (number or null),
price_min (number or null), price_max (number or null),
qualifiers (array of short free-text hints like "near mrt", "quiet street").
Only extract what the message states. Never guess missing values.
No markdown, no extra keys.
`

	if prior != nil {
		if priorJSON, err := json.Marshal(prior); err == nil {
			prompt += "\nFilters from the previous turn, for reference only:\n" + string(priorJSON) + "\n"
		}
	}

	return prompt + "\nMessage:\n" + query
}
