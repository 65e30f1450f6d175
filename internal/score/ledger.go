// Package score persists the player-vs-bot win counters.
package score

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/park285/rpsminus-bot/internal/domain"
)

// ErrPersistenceUnavailable wraps every backend failure. Callers treat it as non-fatal.
var ErrPersistenceUnavailable = errors.New("score persistence unavailable")

// Ledger is one player's counters. Load returns the zero score when nothing was saved.
type Ledger interface {
	Load(ctx context.Context) (domain.Score, error)
	Save(ctx context.Context, s domain.Score) error
	Reset(ctx context.Context) error
}

// Store hands out ledgers keyed by player.
type Store interface {
	Ledger(playerKey string) Ledger
	Close() error
}

// PlayerKey hashes a room/user identity so raw chat ids never reach storage.
func PlayerKey(room, user string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(room) + "|" + strings.TrimSpace(user)))
	return hex.EncodeToString(sum[:])
}
