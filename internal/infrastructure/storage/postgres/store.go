package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
)

// Store persists pipeline state in Postgres.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var (
	_ ports.PublishedRepository    = (*Store)(nil)
	_ ports.RateLimitStore         = (*Store)(nil)
	_ ports.UsageRepository        = (*Store)(nil)
	_ ports.ApprovalRepository     = (*Store)(nil)
	_ ports.VariantStatsRepository = (*Store)(nil)
)

// NewStore wires an open connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) exec(ctx context.Context, query sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.ExecContext(ctx, stmt, args...)
}

func (s *Store) get(ctx context.Context, dest any, query sq.Sqlizer) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	err = s.db.GetContext(ctx, dest, stmt, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) selectRows(ctx context.Context, dest any, query sq.Sqlizer) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.db.SelectContext(ctx, dest, stmt, args...)
}
