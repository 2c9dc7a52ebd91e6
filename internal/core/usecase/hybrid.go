package usecase

import (
	"sort"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

const defaultCandidateLimit = 10

// scoreHybrid blends two independently sourced hit lists into one ranked
// candidate list. alpha is the lexical weight in [0,1]; a missing side
// contributes 0. Pure function over its inputs.
func scoreHybrid(lexical, vector []domain.Hit, alpha float64, limit int) []domain.Candidate {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	normLexical := minMaxNormalize(lexical)
	normVector := minMaxNormalize(vector)

	merged := make(map[string]*domain.Candidate, len(lexical)+len(vector))
	order := make([]string, 0, len(lexical)+len(vector))

	upsert := func(id string) *domain.Candidate {
		if c, ok := merged[id]; ok {
			return c
		}
		c := &domain.Candidate{ID: id}
		merged[id] = c
		order = append(order, id)
		return c
	}

	for _, hit := range lexical {
		c := upsert(hit.ID)
		score := normLexical[hit.ID]
		c.LexicalScore = &score
		c.Listing = preferRicherListing(c.Listing, hit.Listing)
	}
	for _, hit := range vector {
		c := upsert(hit.ID)
		score := normVector[hit.ID]
		c.VectorScore = &score
		c.Listing = preferRicherListing(c.Listing, hit.Listing)
	}

	out := make([]domain.Candidate, 0, len(order))
	for _, id := range order {
		c := merged[id]
		lex, vec := 0.0, 0.0
		if c.LexicalScore != nil {
			lex = *c.LexicalScore
		}
		if c.VectorScore != nil {
			vec = *c.VectorScore
		}
		c.HybridScore = alpha*lex + (1-alpha)*vec
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		// Ties favor items corroborated by both backends.
		if bi, bj := backendCount(out[i]), backendCount(out[j]); bi != bj {
			return bi > bj
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// minMaxNormalize maps each backend's raw scores into [0,1] independently.
// With zero spread (zero or one hit, or all scores equal) every present hit
// normalizes to 1.0 so a lone backend result is not zeroed out.
func minMaxNormalize(hits []domain.Hit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}

	minScore, maxScore := hits[0].RawScore, hits[0].RawScore
	for _, h := range hits[1:] {
		if h.RawScore < minScore {
			minScore = h.RawScore
		}
		if h.RawScore > maxScore {
			maxScore = h.RawScore
		}
	}

	spread := maxScore - minScore
	for _, h := range hits {
		if spread <= 0 {
			out[h.ID] = 1.0
			continue
		}
		out[h.ID] = (h.RawScore - minScore) / spread
	}
	return out
}

func backendCount(c domain.Candidate) int {
	count := 0
	if c.LexicalScore != nil {
		count++
	}
	if c.VectorScore != nil {
		count++
	}
	return count
}

func preferRicherListing(current, candidate *domain.ListingSnapshot) *domain.ListingSnapshot {
	if current == nil {
		return candidate
	}
	return current
}
