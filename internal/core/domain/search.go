package domain

import "time"

// Hit is one raw retrieval result from a single backend.
type Hit struct {
	ID       string
	RawScore float64
	Listing  *ListingSnapshot
}

// ListingSnapshot is the read-only slice of a listing the core needs for
// evaluation and reranking. Listing CRUD lives outside this service.
type ListingSnapshot struct {
	SellerID          string    `json:"seller_id"`
	PropertyType      string    `json:"property_type"`
	District          string    `json:"district"`
	City              string    `json:"city"`
	Bedrooms          int       `json:"bedrooms"`
	Price             float64   `json:"price"`
	ImageCount        int       `json:"image_count"`
	DescriptionLength int       `json:"description_length"`
	Verified          bool      `json:"verified"`
	ListedAt          time.Time `json:"listed_at"`
	EditedAt          time.Time `json:"edited_at"`
}

// Candidate is one retrieved listing flowing through the ranking pipeline.
// Created fresh per turn; never shared across requests.
type Candidate struct {
	ID             string           `json:"id"`
	LexicalScore   *float64         `json:"lexical_score,omitempty"`
	VectorScore    *float64         `json:"vector_score,omitempty"`
	HybridScore    float64          `json:"hybrid_score"`
	Features       RerankFeatures   `json:"features"`
	RerankScore    float64          `json:"rerank_score"`
	FinalScore     float64          `json:"final_score"`
	MatchedReasons []string         `json:"matched_reasons,omitempty"`
	Listing        *ListingSnapshot `json:"listing,omitempty"`
}

// RerankFeatures holds the five signals blended by the reranker, each in [0,1].
type RerankFeatures struct {
	Quality          float64 `json:"quality"`
	SellerReputation float64 `json:"seller_reputation"`
	Freshness        float64 `json:"freshness"`
	Engagement       float64 `json:"engagement"`
	Personalization  float64 `json:"personalization"`
}

// RerankWeights is process-wide ranking configuration. Hot-reloadable between
// requests, never mutated mid-request.
type RerankWeights struct {
	Quality          float64 `yaml:"quality"`
	SellerReputation float64 `yaml:"seller_reputation"`
	Freshness        float64 `yaml:"freshness"`
	Engagement       float64 `yaml:"engagement"`
	Personalization  float64 `yaml:"personalization"`
}

func DefaultRerankWeights() RerankWeights {
	return RerankWeights{
		Quality:          0.40,
		SellerReputation: 0.20,
		Freshness:        0.15,
		Engagement:       0.15,
		Personalization:  0.10,
	}
}

// Valid reports whether the weights are non-negative and sum to 1.0 within a
// small tolerance.
func (w RerankWeights) Valid() bool {
	if w.Quality < 0 || w.SellerReputation < 0 || w.Freshness < 0 || w.Engagement < 0 || w.Personalization < 0 {
		return false
	}
	sum := w.Quality + w.SellerReputation + w.Freshness + w.Engagement + w.Personalization
	return sum > 0.999 && sum < 1.001
}

// EvaluationResult is the verdict over one candidate list for one iteration.
// Computed, never persisted.
type EvaluationResult struct {
	Satisfied    bool     `json:"satisfied"`
	QualityScore float64  `json:"quality_score"`
	Issues       []string `json:"issues,omitempty"`
	MatchedCount int      `json:"matched_count"`
	TotalCount   int      `json:"total_count"`
}

// SellerStats describes a seller's historical behaviour.
type SellerStats struct {
	ResponseRate   float64 `json:"response_rate"`
	AccountAgeDays int     `json:"account_age_days"`
}

// EngagementStats describes accumulated user interest in one listing.
type EngagementStats struct {
	Views     int `json:"views"`
	Inquiries int `json:"inquiries"`
	Clicks    int `json:"clicks"`
}

// UserPreferences is the stored interaction profile for a known user.
type UserPreferences struct {
	Districts     []string `json:"districts"`
	PropertyTypes []string `json:"property_types"`
	PriceMin      *float64 `json:"price_min,omitempty"`
	PriceMax      *float64 `json:"price_max,omitempty"`
}

// ClarificationRequest asks the user for more specificity instead of
// inventing substitute data.
type ClarificationRequest struct {
	Issues          []string `json:"issues"`
	TriedStrategies []string `json:"tried_strategies"`
}

// SearchRequest is one user turn handed to the orchestration engine.
type SearchRequest struct {
	Query            string       `json:"query"`
	UserID           string       `json:"user_id,omitempty"`
	ConversationID   string       `json:"conversation_id,omitempty"`
	PriorRequirement *Requirement `json:"prior_requirement,omitempty"`
	Limit            int          `json:"limit,omitempty"`
}

// TurnResult is the turn's complete outcome handed to the summarizer:
// either a ranked candidate list or a clarification, never both.
type TurnResult struct {
	Candidates    []Candidate           `json:"candidates,omitempty"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`
	Requirement   Requirement           `json:"requirement"`
	Iterations    int                   `json:"iterations"`
	Stage         RelaxationStage       `json:"stage"`
	Degradations  []string              `json:"degradations,omitempty"`
}

// RankingLogEntry is one best-effort training-data record emitted after a
// completed rerank.
type RankingLogEntry struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	UserID      string    `json:"user_id,omitempty"`
	CandidateID string    `json:"candidate_id"`
	Position    int       `json:"position"`
	HybridScore float64   `json:"hybrid_score"`
	RerankScore float64   `json:"rerank_score"`
	FinalScore  float64   `json:"final_score"`
	CreatedAt   time.Time `json:"created_at"`
}
