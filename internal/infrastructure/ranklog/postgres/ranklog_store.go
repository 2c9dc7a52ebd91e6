package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// RankingLogStore persists training-log batches delivered by the worker.
type RankingLogStore struct {
	db *sql.DB
}

func NewRankingLogStore(db *sql.DB) *RankingLogStore {
	return &RankingLogStore{db: db}
}

func (s *RankingLogStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082803)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ranking_log (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	user_id TEXT,
	candidate_id TEXT NOT NULL,
	position INT NOT NULL,
	hybrid_score DOUBLE PRECISION NOT NULL,
	rerank_score DOUBLE PRECISION NOT NULL,
	final_score DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ranking_log_created_at ON ranking_log(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveEntries inserts one batch in a single multi-row statement. Replays of
// the same batch are idempotent via the entry id.
func (s *RankingLogStore) SaveEntries(ctx context.Context, entries []domain.RankingLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
INSERT INTO ranking_log (id, query, user_id, candidate_id, position, hybrid_score, rerank_score, final_score, created_at)
VALUES `)

	args := make([]any, 0, len(entries)*9)
	for i, entry := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		sb.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			entry.ID, entry.Query, entry.UserID, entry.CandidateID, entry.Position,
			entry.HybridScore, entry.RerankScore, entry.FinalScore, entry.CreatedAt,
		)
	}
	sb.WriteString(" ON CONFLICT (id) DO NOTHING")

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return domain.WrapError(domain.ErrUnavailable, "save ranking log", err)
	}
	return nil
}
