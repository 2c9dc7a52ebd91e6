package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// StatsRepository serves the reranker's auxiliary lookups. Missing rows map
// to ErrUnavailable so the caller degrades to a neutral feature score rather
// than treating absence as data.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS seller_stats (
	seller_id TEXT PRIMARY KEY,
	response_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	account_created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS listing_engagement (
	listing_id TEXT PRIMARY KEY,
	views BIGINT NOT NULL DEFAULT 0,
	inquiries BIGINT NOT NULL DEFAULT 0,
	clicks BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id TEXT PRIMARY KEY,
	districts JSONB NOT NULL DEFAULT '[]'::jsonb,
	property_types JSONB NOT NULL DEFAULT '[]'::jsonb,
	price_min DOUBLE PRECISION,
	price_max DOUBLE PRECISION
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *StatsRepository) SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT response_rate, account_created_at
FROM seller_stats
WHERE seller_id = $1
`, sellerID)

	var stats domain.SellerStats
	var createdAt time.Time
	if err := row.Scan(&stats.ResponseRate, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SellerStats{}, domain.WrapError(domain.ErrUnavailable, "seller stats",
				fmt.Errorf("seller %s: %w", sellerID, err))
		}
		return domain.SellerStats{}, domain.WrapError(domain.ErrUnavailable, "seller stats", err)
	}
	stats.AccountAgeDays = int(time.Since(createdAt).Hours() / 24)
	return stats, nil
}

func (r *StatsRepository) EngagementStats(ctx context.Context, listingID string) (domain.EngagementStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT views, inquiries, clicks
FROM listing_engagement
WHERE listing_id = $1
`, listingID)

	var stats domain.EngagementStats
	if err := row.Scan(&stats.Views, &stats.Inquiries, &stats.Clicks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EngagementStats{}, domain.WrapError(domain.ErrUnavailable, "engagement stats",
				fmt.Errorf("listing %s: %w", listingID, err))
		}
		return domain.EngagementStats{}, domain.WrapError(domain.ErrUnavailable, "engagement stats", err)
	}
	return stats, nil
}

func (r *StatsRepository) UserPreferences(ctx context.Context, userID string) (domain.UserPreferences, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT districts, property_types, price_min, price_max
FROM user_preferences
WHERE user_id = $1
`, userID)

	var (
		prefs              domain.UserPreferences
		districtsRaw       []byte
		typesRaw           []byte
		priceMin, priceMax sql.NullFloat64
	)
	if err := row.Scan(&districtsRaw, &typesRaw, &priceMin, &priceMax); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserPreferences{}, domain.WrapError(domain.ErrUnavailable, "user preferences",
				fmt.Errorf("user %s: %w", userID, err))
		}
		return domain.UserPreferences{}, domain.WrapError(domain.ErrUnavailable, "user preferences", err)
	}

	if err := unmarshalStrings(districtsRaw, &prefs.Districts); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("unmarshal districts: %w", err)
	}
	if err := unmarshalStrings(typesRaw, &prefs.PropertyTypes); err != nil {
		return domain.UserPreferences{}, fmt.Errorf("unmarshal property types: %w", err)
	}
	if priceMin.Valid {
		prefs.PriceMin = &priceMin.Float64
	}
	if priceMax.Valid {
		prefs.PriceMax = &priceMax.Float64
	}
	return prefs, nil
}
