package rpsbuilder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/rpsminus-bot/internal/config"
	corerps "github.com/park285/rpsminus-bot/internal/rps"
	"github.com/park285/rpsminus-bot/internal/score"
	svcrps "github.com/park285/rpsminus-bot/internal/service/rps"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Deps struct {
	Manager *svcrps.Manager
	Engine  *corerps.Engine
	Store   score.Store
	// Backend names the ledger store that was picked.
	Backend string
}

// Close shuts the manager down before the store it writes to.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Manager != nil {
		d.Manager.Close()
	}
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}

// New picks the ledger store (DATABASE_URL, then REDIS_URL, then memory) and
// builds the session manager on top of it.
func New(cfg *config.AppConfig, logger *zap.Logger, opts ...svcrps.Option) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, backend, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("rps_ledger_store", zap.String("backend", backend))

	engine := corerps.NewEngine(nil)
	mgr, err := svcrps.NewManager(store, engine, svcrps.Config{
		DefaultDifficulty: cfg.Difficulty(),
		Timings:           cfg.Timings(),
		MaxSessions:       cfg.MaxSessions,
		MaxIdleRounds:     cfg.MaxIdleRounds,
		AllowedRooms:      append([]string(nil), cfg.AllowedRooms...),
	}, logger, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Deps{Manager: mgr, Engine: engine, Store: store, Backend: backend}, nil
}

func openStore(cfg *config.AppConfig) (score.Store, string, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := score.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("init postgres ledger: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, "", err
		}
		return pg, BackendPostgres, nil
	case cfg.RedisURL != "":
		rs, err := score.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, "", fmt.Errorf("init redis ledger: %w", err)
		}
		return rs, BackendRedis, nil
	default:
		return score.NewMemoryStore(), BackendMemory, nil
	}
}
