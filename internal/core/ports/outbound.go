package ports

import (
	"context"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// RequirementExtractor turns free text into a structured requirement.
// Structurally invalid output maps to domain.ErrInvalidInput, not a crash.
type RequirementExtractor interface {
	Extract(ctx context.Context, query string, prior *domain.Requirement) (domain.Requirement, error)
}

// LexicalSearcher is the keyword/full-text retrieval backend.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, query string, filters domain.Requirement, limit int) ([]domain.Hit, error)
}

// VectorSearcher is the semantic retrieval backend over the same corpus.
type VectorSearcher interface {
	SearchVector(ctx context.Context, query string, limit int) ([]domain.Hit, error)
}

// SellerStatsProvider looks up seller reputation inputs. A missing seller
// returns domain.ErrUnavailable, distinct from a hard error.
type SellerStatsProvider interface {
	SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error)
}

// EngagementStatsProvider looks up per-listing engagement counters.
type EngagementStatsProvider interface {
	EngagementStats(ctx context.Context, listingID string) (domain.EngagementStats, error)
}

// PreferenceProvider looks up a known user's stored preferences.
type PreferenceProvider interface {
	UserPreferences(ctx context.Context, userID string) (domain.UserPreferences, error)
}

// RankingLogSink receives best-effort training-data records. Implementations
// must never block the caller; delivery failures are logged and dropped.
type RankingLogSink interface {
	LogRanking(entries []domain.RankingLogEntry)
}

// RankingLogStore persists consumed ranking-log events on the worker side.
type RankingLogStore interface {
	SaveEntries(ctx context.Context, entries []domain.RankingLogEntry) error
}
