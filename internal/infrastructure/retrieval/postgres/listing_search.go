package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
	"github.com/kirillkom/property-search-assistant/internal/infrastructure/resilience"
)

// ListingSearch is the lexical retrieval backend: Postgres full-text search
// over listing titles and descriptions, narrowed by the structured filters.
type ListingSearch struct {
	db   *sql.DB
	exec *resilience.Executor
}

func NewListingSearch(db *sql.DB, exec *resilience.Executor) *ListingSearch {
	return &ListingSearch{db: db, exec: exec}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *ListingSearch) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	seller_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	property_type TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	district TEXT NOT NULL,
	city TEXT NOT NULL,
	bedrooms INT NOT NULL DEFAULT 0,
	price DOUBLE PRECISION NOT NULL DEFAULT 0,
	image_count INT NOT NULL DEFAULT 0,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	listed_at TIMESTAMPTZ NOT NULL,
	edited_at TIMESTAMPTZ,
	search_vector TSVECTOR GENERATED ALWAYS AS (
		to_tsvector('english', title || ' ' || description)
	) STORED
);

CREATE INDEX IF NOT EXISTS idx_listings_search ON listings USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_listings_district ON listings(district);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *ListingSearch) SearchLexical(ctx context.Context, query string, filters domain.Requirement, limit int) ([]domain.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	var hits []domain.Hit
	search := func(ctx context.Context) error {
		var err error
		hits, err = s.search(ctx, query, filters, limit)
		return err
	}
	if s.exec == nil {
		if err := search(ctx); err != nil {
			return nil, err
		}
		return hits, nil
	}
	if err := s.exec.Execute(ctx, "lexical_search", search, resilience.ClassifyDomainError); err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *ListingSearch) search(ctx context.Context, query string, filters domain.Requirement, limit int) ([]domain.Hit, error) {
	sqlQuery, args := buildSearchQuery(query, filters, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "lexical search", err)
	}
	defer rows.Close()

	var hits []domain.Hit
	for rows.Next() {
		var (
			hit      domain.Hit
			listing  domain.ListingSnapshot
			editedAt sql.NullTime
		)
		err := rows.Scan(
			&hit.ID, &hit.RawScore,
			&listing.SellerID, &listing.PropertyType, &listing.District, &listing.City,
			&listing.Bedrooms, &listing.Price, &listing.ImageCount, &listing.DescriptionLength,
			&listing.Verified, &listing.ListedAt, &editedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing hit: %w", err)
		}
		if editedAt.Valid {
			listing.EditedAt = editedAt.Time
		}
		hit.Listing = &listing
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "lexical search", err)
	}
	return hits, nil
}

// buildSearchQuery appends one positional predicate per present filter.
func buildSearchQuery(query string, filters domain.Requirement, limit int) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`
SELECT id, ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank,
	seller_id, property_type, district, city, bedrooms, price,
	image_count, length(description), verified, listed_at, edited_at
FROM listings
WHERE search_vector @@ plainto_tsquery('english', $1)`)

	args := []any{query}
	next := func() int { return len(args) + 1 }

	if filters.PropertyType != "" {
		sb.WriteString(fmt.Sprintf(" AND property_type = $%d", next()))
		args = append(args, filters.PropertyType)
	}
	if filters.TransactionType != "" {
		sb.WriteString(fmt.Sprintf(" AND transaction_type = $%d", next()))
		args = append(args, string(filters.TransactionType))
	}
	if filters.District != "" {
		sb.WriteString(fmt.Sprintf(" AND district ILIKE $%d", next()))
		args = append(args, filters.District)
	}
	if filters.City != "" {
		sb.WriteString(fmt.Sprintf(" AND city ILIKE $%d", next()))
		args = append(args, filters.City)
	}
	if filters.BedroomsMin != nil {
		sb.WriteString(fmt.Sprintf(" AND bedrooms >= $%d", next()))
		args = append(args, *filters.BedroomsMin)
	}
	if filters.BedroomsMax != nil {
		sb.WriteString(fmt.Sprintf(" AND bedrooms <= $%d", next()))
		args = append(args, *filters.BedroomsMax)
	}
	if filters.PriceMin != nil {
		sb.WriteString(fmt.Sprintf(" AND price >= $%d", next()))
		args = append(args, *filters.PriceMin)
	}
	if filters.PriceMax != nil {
		sb.WriteString(fmt.Sprintf(" AND price <= $%d", next()))
		args = append(args, *filters.PriceMax)
	}

	sb.WriteString(fmt.Sprintf(" ORDER BY rank DESC LIMIT $%d", next()))
	args = append(args, limit)
	return sb.String(), args
}
