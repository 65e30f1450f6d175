package score

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/rpsminus-bot/internal/domain"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewRedisStore("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// exerciseLedger checks the load/save/reset contract every backend shares.
func exerciseLedger(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	a := store.Ledger(PlayerKey("roomA", "u1"))
	b := store.Ledger(PlayerKey("roomA", "u2"))

	got, err := a.Load(ctx)
	if err != nil || got != (domain.Score{}) {
		t.Fatalf("empty ledger Load = %+v, %v", got, err)
	}

	want := domain.Score{PlayerWins: 3, BotWins: 5}
	if err := a.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, err = a.Load(ctx); err != nil || got != want {
		t.Fatalf("Load after Save = %+v, %v; want %+v", got, err, want)
	}
	if got, _ = b.Load(ctx); got != (domain.Score{}) {
		t.Fatalf("ledgers leaked between players: %+v", got)
	}

	big := domain.Score{PlayerWins: math.MaxInt64, BotWins: 1 << 40}
	if err := a.Save(ctx, big); err != nil {
		t.Fatalf("Save big: %v", err)
	}
	if got, _ = a.Load(ctx); got != big {
		t.Fatalf("large counters lost precision: %+v", got)
	}

	if err := a.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got, _ = a.Load(ctx); got != (domain.Score{}) {
		t.Fatalf("Load after Reset = %+v", got)
	}
}

func TestMemoryStoreLedger(t *testing.T) {
	exerciseLedger(t, NewMemoryStore())
}

func TestRedisStoreLedger(t *testing.T) {
	s, _ := newTestRedisStore(t)
	exerciseLedger(t, s)
}

func TestRedisStoreKeyLayout(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	if err := s.Ledger("abc").Save(ctx, domain.Score{PlayerWins: 2, BotWins: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v := mr.HGet("rps:score:abc", "player_wins"); v != "2" {
		t.Fatalf("player_wins = %q", v)
	}
	if v := mr.HGet("rps:score:abc", "bot_wins"); v != "1" {
		t.Fatalf("bot_wins = %q", v)
	}
	if mr.TTL("rps:score:abc") <= 0 {
		t.Fatalf("expected ttl on score key")
	}
}

func TestRedisStoreCorruptValue(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.HSet("rps:score:bad", "player_wins", "minus-one")
	_, err := s.Ledger("bad").Load(context.Background())
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewRedisStoreFromClient(rdb)
	t.Cleanup(func() { _ = s.Close() })
	mr.Close()

	ctx := context.Background()
	l := s.Ledger("gone")
	if _, err := l.Load(ctx); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("Load: expected ErrPersistenceUnavailable, got %v", err)
	}
	if err := l.Save(ctx, domain.Score{PlayerWins: 1}); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("Save: expected ErrPersistenceUnavailable, got %v", err)
	}
	if err := l.Reset(ctx); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("Reset: expected ErrPersistenceUnavailable, got %v", err)
	}
}

func TestNewRedisStoreRequiresURL(t *testing.T) {
	if _, err := NewRedisStore(" "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

// Integration-style test: runs only if RPS_TEST_DATABASE_URL is set.
func TestPostgresStoreLedger(t *testing.T) {
	url := os.Getenv("RPS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("RPS_TEST_DATABASE_URL not set; skipping postgres test")
	}
	s, err := NewPostgresStore(url)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	for _, u := range []string{"u1", "u2"} {
		_ = s.Ledger(PlayerKey("roomA", u)).Reset(context.Background())
	}
	exerciseLedger(t, s)
}

func TestPlayerKeyStable(t *testing.T) {
	a := PlayerKey("room", "user")
	if a != PlayerKey(" room ", "user ") {
		t.Fatalf("PlayerKey should ignore surrounding whitespace")
	}
	if a == PlayerKey("room", "other") || len(a) != 64 {
		t.Fatalf("unexpected key %q", a)
	}
}
