package score

import (
	"context"
	"strings"
	"sync"

	"github.com/park285/rpsminus-bot/internal/domain"
)

// MemoryStore keeps scores in process. Used when no Redis or database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	scores map[string]domain.Score
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]domain.Score)}
}

func (m *MemoryStore) Ledger(playerKey string) Ledger {
	return &memoryLedger{store: m, key: strings.TrimSpace(playerKey)}
}

func (m *MemoryStore) Close() error { return nil }

type memoryLedger struct {
	store *MemoryStore
	key   string
}

func (l *memoryLedger) Load(ctx context.Context) (domain.Score, error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return l.store.scores[l.key], nil
}

func (l *memoryLedger) Save(ctx context.Context, s domain.Score) error {
	l.store.mu.Lock()
	l.store.scores[l.key] = s
	l.store.mu.Unlock()
	return nil
}

func (l *memoryLedger) Reset(ctx context.Context) error {
	l.store.mu.Lock()
	delete(l.store.scores, l.key)
	l.store.mu.Unlock()
	return nil
}
