package score

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/rpsminus-bot/internal/domain"
)

const schemaScores = `
	CREATE TABLE IF NOT EXISTS rps_scores (
		player_hash TEXT PRIMARY KEY,
		player_wins BIGINT NOT NULL DEFAULT 0 CHECK (player_wins >= 0),
		bot_wins    BIGINT NOT NULL DEFAULT 0 CHECK (bot_wins >= 0),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// PostgresStore keeps one row per player in rps_scores.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the scores table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaScores); err != nil {
		return fmt.Errorf("create rps_scores: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ledger(playerKey string) Ledger {
	return &postgresLedger{db: s.db, key: strings.TrimSpace(playerKey)}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type postgresLedger struct {
	db  *sql.DB
	key string
}

func (l *postgresLedger) Load(ctx context.Context) (domain.Score, error) {
	const query = `SELECT player_wins, bot_wins FROM rps_scores WHERE player_hash = $1`
	var player, bot int64
	err := l.db.QueryRowContext(ctx, query, l.key).Scan(&player, &bot)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Score{}, nil
	}
	if err != nil {
		return domain.Score{}, fmt.Errorf("%w: select score: %w", ErrPersistenceUnavailable, err)
	}
	if player < 0 || bot < 0 {
		return domain.Score{}, fmt.Errorf("%w: negative counter stored for %s", ErrPersistenceUnavailable, l.key)
	}
	return domain.Score{PlayerWins: uint64(player), BotWins: uint64(bot)}, nil
}

func (l *postgresLedger) Save(ctx context.Context, s domain.Score) error {
	if s.PlayerWins > math.MaxInt64 || s.BotWins > math.MaxInt64 {
		return fmt.Errorf("%w: counter exceeds BIGINT", ErrPersistenceUnavailable)
	}
	const query = `
		INSERT INTO rps_scores (player_hash, player_wins, bot_wins, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (player_hash) DO UPDATE SET
			player_wins = EXCLUDED.player_wins,
			bot_wins    = EXCLUDED.bot_wins,
			updated_at  = EXCLUDED.updated_at`
	if _, err := l.db.ExecContext(ctx, query, l.key, int64(s.PlayerWins), int64(s.BotWins)); err != nil {
		return fmt.Errorf("%w: upsert score: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}

func (l *postgresLedger) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM rps_scores WHERE player_hash = $1`, l.key); err != nil {
		return fmt.Errorf("%w: delete score: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}
