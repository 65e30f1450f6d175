package score

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/rpsminus-bot/internal/domain"
)

const (
	fieldPlayerWins = "player_wins"
	fieldBotWins    = "bot_wins"
	defaultKeyTTL   = 180 * 24 * time.Hour
)

// RedisStore keeps each ledger in a hash under rps:score:<player>.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis score store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(rdb), nil
}

func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: defaultKeyTTL}
}

func (s *RedisStore) Ledger(playerKey string) Ledger {
	return &redisLedger{rdb: s.rdb, key: "rps:score:" + strings.TrimSpace(playerKey), ttl: s.ttl}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

type redisLedger struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func (l *redisLedger) Load(ctx context.Context) (domain.Score, error) {
	vals, err := l.rdb.HGetAll(ctx, l.key).Result()
	if err != nil {
		return domain.Score{}, fmt.Errorf("%w: redis load: %w", ErrPersistenceUnavailable, err)
	}
	var s domain.Score
	if s.PlayerWins, err = parseCounter(vals[fieldPlayerWins]); err != nil {
		return domain.Score{}, fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, fieldPlayerWins, err)
	}
	if s.BotWins, err = parseCounter(vals[fieldBotWins]); err != nil {
		return domain.Score{}, fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, fieldBotWins, err)
	}
	return s, nil
}

func (l *redisLedger) Save(ctx context.Context, s domain.Score) error {
	pipe := l.rdb.TxPipeline()
	pipe.HSet(ctx, l.key,
		fieldPlayerWins, strconv.FormatUint(s.PlayerWins, 10),
		fieldBotWins, strconv.FormatUint(s.BotWins, 10),
	)
	if l.ttl > 0 {
		pipe.Expire(ctx, l.key, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: redis save: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}

func (l *redisLedger) Reset(ctx context.Context) error {
	if err := l.rdb.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("%w: redis reset: %w", ErrPersistenceUnavailable, err)
	}
	return nil
}

func parseCounter(v string) (uint64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}
