package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

func TestScoreHybridBlendsBothBackends(t *testing.T) {
	lexical := []domain.Hit{
		{ID: "A", RawScore: 9},
		{ID: "B", RawScore: 1},
	}
	vector := []domain.Hit{
		{ID: "B", RawScore: 0.8},
		{ID: "C", RawScore: 0.4},
	}

	out := scoreHybrid(lexical, vector, 0.5, 10)
	if len(out) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(out))
	}
	if out[0].ID != "B" || out[1].ID != "A" || out[2].ID != "C" {
		t.Fatalf("expected order [B A C], got [%s %s %s]", out[0].ID, out[1].ID, out[2].ID)
	}
	// normLex: A=1.0 B=0.0; normVec: B=1.0 C=0.0
	if math.Abs(out[0].HybridScore-0.5) > 1e-9 {
		t.Fatalf("expected B hybrid score 0.5, got %f", out[0].HybridScore)
	}
	if math.Abs(out[1].HybridScore-0.5) > 1e-9 {
		t.Fatalf("expected A hybrid score 0.5, got %f", out[1].HybridScore)
	}
	if out[2].HybridScore != 0 {
		t.Fatalf("expected C hybrid score 0, got %f", out[2].HybridScore)
	}
}

func TestScoreHybridNormalizesScoresIntoUnitRange(t *testing.T) {
	lexical := []domain.Hit{
		{ID: "a", RawScore: 12.5},
		{ID: "b", RawScore: 3.7},
		{ID: "c", RawScore: 0.2},
	}

	out := scoreHybrid(lexical, nil, 1.0, 10)
	for _, c := range out {
		if c.HybridScore < 0 || c.HybridScore > 1 {
			t.Fatalf("normalized score out of [0,1]: %f", c.HybridScore)
		}
	}
	if out[0].ID != "a" || out[0].HybridScore != 1.0 {
		t.Fatalf("expected top raw hit normalized to 1.0, got %s=%f", out[0].ID, out[0].HybridScore)
	}
}

func TestScoreHybridSingleHitNormalizesToOne(t *testing.T) {
	out := scoreHybrid([]domain.Hit{{ID: "only", RawScore: 0.003}}, nil, 0.3, 10)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if *out[0].LexicalScore != 1.0 {
		t.Fatalf("single-hit backend must normalize to 1.0, got %f", *out[0].LexicalScore)
	}
}

func TestScoreHybridMergeCompleteness(t *testing.T) {
	lexical := []domain.Hit{{ID: "x", RawScore: 2}, {ID: "y", RawScore: 1}}
	vector := []domain.Hit{{ID: "y", RawScore: 5}, {ID: "z", RawScore: 4}}

	out := scoreHybrid(lexical, vector, 0.3, 10)
	seen := map[string]domain.Candidate{}
	for _, c := range out {
		seen[c.ID] = c
	}
	for _, id := range []string{"x", "y", "z"} {
		if _, ok := seen[id]; !ok {
			t.Fatalf("item %s missing from merged output", id)
		}
	}
	// x only appears lexically: vector side contributes 0.
	x := seen["x"]
	if x.VectorScore != nil {
		t.Fatalf("expected nil vector score for lexical-only item")
	}
	if math.Abs(x.HybridScore-0.3*1.0) > 1e-9 {
		t.Fatalf("expected x hybrid 0.3, got %f", x.HybridScore)
	}
}

func TestScoreHybridTruncatesToLimit(t *testing.T) {
	hits := make([]domain.Hit, 25)
	for i := range hits {
		hits[i] = domain.Hit{ID: string(rune('a' + i)), RawScore: float64(25 - i)}
	}
	out := scoreHybrid(hits, nil, 1.0, 0)
	if len(out) != defaultCandidateLimit {
		t.Fatalf("expected default limit %d, got %d", defaultCandidateLimit, len(out))
	}
}

func TestScoreHybridEmptyInputsStayEmpty(t *testing.T) {
	out := scoreHybrid(nil, nil, 0.5, 10)
	if len(out) != 0 {
		t.Fatalf("expected empty output for empty inputs, got %d", len(out))
	}
}
