package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// Diagnosis strings consumed by the relaxation planner and the user-facing
// clarification.
const (
	issueNoCandidates     = "no candidates found"
	issueFewCandidates    = "too few candidates found"
	issueLowRelevance     = "most candidates do not match the requested filters"
	issueNoDistrictMatch  = "no candidates in requested district"
	issueNoBedroomsMatch  = "no candidates with requested bedrooms"
	issueNoPriceMatch     = "no candidates within requested price range"
	issueLowDiversity     = "results cover a single property type"
	qualitySatisfiedAt    = 0.7
	relevanceWeight       = 0.4
)

// relevanceMatcher decides whether one candidate satisfies the structured
// fields of a requirement. Free-text qualifiers stay out of the formula;
// override in tests or extensions that need fuzzier matching.
type relevanceMatcher func(c domain.Candidate, req domain.Requirement) bool

// evaluateCandidates scores a candidate list against a requirement.
// count: 0 / 0.2 (1-2 results) / 0.4 (>=3); relevance: matched fraction * 0.4;
// diversity: 0.2 when at least two property types are present. Max 1.0.
func evaluateCandidates(candidates []domain.Candidate, req domain.Requirement) domain.EvaluationResult {
	return evaluateCandidatesWith(candidates, req, matchesStructuredFields)
}

func evaluateCandidatesWith(candidates []domain.Candidate, req domain.Requirement, matches relevanceMatcher) domain.EvaluationResult {
	result := domain.EvaluationResult{TotalCount: len(candidates)}

	countScore := 0.0
	switch {
	case len(candidates) >= 3:
		countScore = 0.4
	case len(candidates) >= 1:
		countScore = 0.2
	}

	districtMisses, bedroomMisses, priceMisses := 0, 0, 0
	propertyTypes := make(map[string]struct{})
	for _, c := range candidates {
		if matches(c, req) {
			result.MatchedCount++
		}
		if c.Listing == nil {
			continue
		}
		if t := strings.TrimSpace(c.Listing.PropertyType); t != "" {
			propertyTypes[strings.ToLower(t)] = struct{}{}
		}
		if !districtMatches(*c.Listing, req) {
			districtMisses++
		}
		if !bedroomsMatch(*c.Listing, req) {
			bedroomMisses++
		}
		if !priceMatches(*c.Listing, req) {
			priceMisses++
		}
	}

	relevance := 0.0
	if len(candidates) > 0 {
		relevance = float64(result.MatchedCount) / float64(len(candidates))
	}

	diversity := 0.0
	if len(propertyTypes) >= 2 {
		diversity = 0.2
	}

	result.QualityScore = countScore + relevance*relevanceWeight + diversity
	result.Satisfied = result.QualityScore >= qualitySatisfiedAt
	if result.Satisfied {
		return result
	}

	if len(candidates) == 0 {
		result.Issues = append(result.Issues, issueNoCandidates)
		return result
	}
	if len(candidates) < 3 {
		result.Issues = append(result.Issues, issueFewCandidates)
	}
	if relevance < 0.5 {
		result.Issues = append(result.Issues, issueLowRelevance)
		if req.District != "" && districtMisses == len(candidates) {
			result.Issues = append(result.Issues, issueNoDistrictMatch)
		}
		if (req.BedroomsMin != nil || req.BedroomsMax != nil) && bedroomMisses == len(candidates) {
			result.Issues = append(result.Issues, issueNoBedroomsMatch)
		}
		if (req.PriceMin != nil || req.PriceMax != nil) && priceMisses == len(candidates) {
			result.Issues = append(result.Issues, issueNoPriceMatch)
		}
	}
	if diversity == 0 && len(candidates) >= 3 {
		result.Issues = append(result.Issues, issueLowDiversity)
	}
	if len(result.Issues) == 0 {
		result.Issues = append(result.Issues, fmt.Sprintf("quality score %.2f below threshold", result.QualityScore))
	}
	return result
}

func matchesStructuredFields(c domain.Candidate, req domain.Requirement) bool {
	if c.Listing == nil {
		return false
	}
	listing := *c.Listing
	return districtMatches(listing, req) && bedroomsMatch(listing, req) && priceMatches(listing, req)
}

func districtMatches(listing domain.ListingSnapshot, req domain.Requirement) bool {
	if strings.TrimSpace(req.District) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(listing.District), strings.TrimSpace(req.District))
}

func bedroomsMatch(listing domain.ListingSnapshot, req domain.Requirement) bool {
	if req.BedroomsMin != nil && listing.Bedrooms < *req.BedroomsMin {
		return false
	}
	if req.BedroomsMax != nil && listing.Bedrooms > *req.BedroomsMax {
		return false
	}
	return true
}

func priceMatches(listing domain.ListingSnapshot, req domain.Requirement) bool {
	if req.PriceMin != nil && listing.Price < *req.PriceMin {
		return false
	}
	if req.PriceMax != nil && listing.Price > *req.PriceMax {
		return false
	}
	return true
}
