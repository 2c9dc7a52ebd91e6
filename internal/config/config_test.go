package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesSearchDefaults(t *testing.T) {
	t.Setenv("SEARCH_MAX_ITERATIONS", "")
	t.Setenv("SEARCH_TURN_TIMEOUT_SECONDS", "")
	t.Setenv("SEARCH_CANDIDATE_LIMIT", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")

	cfg := Load()
	if cfg.SearchMaxIterations != 2 {
		t.Fatalf("expected default max iterations 2, got %d", cfg.SearchMaxIterations)
	}
	if cfg.SearchTurnTimeoutSeconds != 20 {
		t.Fatalf("expected default turn timeout 20, got %d", cfg.SearchTurnTimeoutSeconds)
	}
	if cfg.SearchCandidateLimit != 10 {
		t.Fatalf("expected default candidate limit 10, got %d", cfg.SearchCandidateLimit)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rate limit 20, got %d", cfg.APIRateLimitRPS)
	}
}

func TestLoadParsesSearchOverrides(t *testing.T) {
	t.Setenv("SEARCH_MAX_ITERATIONS", "3")
	t.Setenv("SEARCH_CANDIDATE_LIMIT", "20")
	t.Setenv("QDRANT_COLLECTION", "listings_v2")

	cfg := Load()
	if cfg.SearchMaxIterations != 3 {
		t.Fatalf("expected max iterations override, got %d", cfg.SearchMaxIterations)
	}
	if cfg.SearchCandidateLimit != 20 {
		t.Fatalf("expected candidate limit override, got %d", cfg.SearchCandidateLimit)
	}
	if cfg.QdrantCollection != "listings_v2" {
		t.Fatalf("expected collection override, got %q", cfg.QdrantCollection)
	}
}

func TestRerankWeightsSourceDefaultsWithoutPath(t *testing.T) {
	source, err := NewRerankWeightsSource("", nil)
	if err != nil {
		t.Fatalf("NewRerankWeightsSource() error = %v", err)
	}
	weights := source.Current()
	if !weights.Valid() {
		t.Fatalf("default weights must be valid: %+v", weights)
	}
	if weights.Quality != 0.40 {
		t.Fatalf("unexpected default quality weight %f", weights.Quality)
	}
}

func TestRerankWeightsSourceLoadsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	write := func(content string) {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write weights file: %v", err)
		}
	}
	write("quality: 0.5\nseller_reputation: 0.2\nfreshness: 0.1\nengagement: 0.1\npersonalization: 0.1\n")

	source, err := NewRerankWeightsSource(path, nil)
	if err != nil {
		t.Fatalf("NewRerankWeightsSource() error = %v", err)
	}
	if source.Current().Quality != 0.5 {
		t.Fatalf("unexpected quality weight %f", source.Current().Quality)
	}

	// Weights that do not sum to 1.0 keep the previous set active.
	write("quality: 0.9\nseller_reputation: 0.9\nfreshness: 0\nengagement: 0\npersonalization: 0\n")
	if err := source.Reload(); err == nil {
		t.Fatalf("expected reload to reject invalid weights")
	}
	if source.Current().Quality != 0.5 {
		t.Fatalf("invalid reload must not replace weights, got %f", source.Current().Quality)
	}

	write("quality: 0.3\nseller_reputation: 0.3\nfreshness: 0.2\nengagement: 0.1\npersonalization: 0.1\n")
	if err := source.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if source.Current().Quality != 0.3 {
		t.Fatalf("reload must replace weights, got %f", source.Current().Quality)
	}
}
