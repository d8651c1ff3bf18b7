package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the subset of *pgxpool.Pool the store uses.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const tokensDDL = `
CREATE TABLE IF NOT EXISTS myxl_tokens (
	number        BIGINT PRIMARY KEY,
	refresh_token TEXT NOT NULL,
	access_token  TEXT NOT NULL DEFAULT '',
	id_token      TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStore struct {
	db pgxQuerier
}

// NewPostgresStore opens a pool on dsn and makes sure the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, tokensDDL); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate myxl_tokens: %w", err)
	}
	return &PostgresStore{db: pool}, pool, nil
}

func (s *PostgresStore) Save(ctx context.Context, number int64, t Tokens) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO myxl_tokens (number, refresh_token, access_token, id_token, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (number) DO UPDATE
		SET refresh_token = EXCLUDED.refresh_token,
		    access_token  = EXCLUDED.access_token,
		    id_token      = EXCLUDED.id_token,
		    updated_at    = now()`,
		number, t.RefreshToken, t.AccessToken, t.IDToken)
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, number int64) (Tokens, error) {
	var t Tokens
	err := s.db.QueryRow(ctx,
		`SELECT refresh_token, access_token, id_token FROM myxl_tokens WHERE number = $1`,
		number).Scan(&t.RefreshToken, &t.AccessToken, &t.IDToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tokens{}, ErrNoTokens
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("load tokens: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Numbers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT number FROM myxl_tokens ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list numbers: %w", err)
	}
	nums, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan numbers: %w", err)
	}
	return nums, nil
}
