package usecase

import (
	"strings"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

type queryMode string

const (
	modeFilterHeavy queryMode = "filter_heavy"
	modeSemantic    queryMode = "semantic"
	modeMixed       queryMode = "mixed"
)

const (
	alphaFilterHeavy = 0.5
	alphaSemantic    = 0.2
	alphaMixed       = 0.3
)

// classifyQueryMode picks the lexical weight for hybrid scoring from the
// shape of the extracted requirement: many hard filters with little free text
// lean lexical, a bare natural-language query leans semantic.
func classifyQueryMode(query string, req domain.Requirement) (queryMode, float64) {
	structured := req.StructuredFieldCount()
	freeTokens := len(strings.Fields(query))

	switch {
	case structured >= 2 && freeTokens <= 4:
		return modeFilterHeavy, alphaFilterHeavy
	case structured == 0:
		return modeSemantic, alphaSemantic
	default:
		return modeMixed, alphaMixed
	}
}

// followUpMarkers are reference heuristics for short queries that continue the
// previous turn ("what about that one", "anything cheaper in the area").
var followUpMarkers = []string{
	"that one", "those", "the area", "same area", "this one",
	"cheaper", "bigger", "smaller", "what about", "how about", "instead",
}

func looksLikeFollowUp(query string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) > 8 {
		return false
	}
	for _, marker := range followUpMarkers {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}
