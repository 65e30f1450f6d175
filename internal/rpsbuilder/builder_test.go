package rpsbuilder

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/park285/rpsminus-bot/internal/config"
	"github.com/park285/rpsminus-bot/internal/domain"
	svcrps "github.com/park285/rpsminus-bot/internal/service/rps"
)

func baseConfig() *config.AppConfig {
	return &config.AppConfig{
		DefaultDifficulty: "hard",
		FirstPickMS:       4000,
		SecondPickMS:      4000,
		DiscardMS:         2000,
		ResultHoldMS:      3000,
		MaxIdleRounds:     3,
		MaxSessions:       10,
	}
}

var meta = svcrps.SessionMeta{SessionID: "lobby:u1", Room: "lobby", Sender: "u1"}

func TestNewUsesMemoryByDefault(t *testing.T) {
	deps, err := New(baseConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })
	if deps.Backend != BackendMemory {
		t.Fatalf("backend = %s", deps.Backend)
	}

	snap, err := deps.Manager.Start(context.Background(), meta, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap.Difficulty != domain.Hard {
		t.Fatalf("default difficulty not applied: %s", snap.Difficulty)
	}
}

func TestNewUsesRedisWhenConfigured(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	deps, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })
	if deps.Backend != BackendRedis {
		t.Fatalf("backend = %s", deps.Backend)
	}

	ctx := context.Background()
	if err := deps.Store.Ledger("k").Save(ctx, domain.Score{PlayerWins: 2, BotWins: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := mr.HGet("rps:score:k", "player_wins"); got != "2" {
		t.Fatalf("player_wins = %q", got)
	}

	report, err := deps.Manager.Score(ctx, meta)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.Live || report.Score != (domain.Score{}) {
		t.Fatalf("fresh player report = %+v", report)
	}
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	mr.Close()

	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewUsesPostgresWhenConfigured(t *testing.T) {
	url := os.Getenv("RPS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("RPS_TEST_DATABASE_URL not set")
	}
	cfg := baseConfig()
	cfg.DatabaseURL = url
	cfg.RedisURL = "redis://127.0.0.1:1"

	deps, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })
	if deps.Backend != BackendPostgres {
		t.Fatalf("backend = %s", deps.Backend)
	}
}
