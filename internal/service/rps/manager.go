package rps

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/rpsminus-bot/internal/domain"
	"github.com/park285/rpsminus-bot/internal/metrics"
	corerps "github.com/park285/rpsminus-bot/internal/rps"
	"github.com/park285/rpsminus-bot/internal/score"
)

var (
	ErrSessionNotFound   = errors.New("rps session not found")
	ErrSessionInProgress = errors.New("rps session already in progress")
	ErrTooManySessions   = errors.New("too many rps sessions")
	ErrRoomNotAllowed    = errors.New("rps room not allowed")
)

const defaultMaxSessions = 200

type SessionMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type Config struct {
	DefaultDifficulty domain.Difficulty
	Timings           corerps.Timings
	MaxSessions       int
	MaxIdleRounds     int
	AllowedRooms      []string
}

// ListenerFactory builds the snapshot listener for a new session.
type ListenerFactory func(meta SessionMeta) Listener

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithListenerFactory(f ListenerFactory) Option {
	return func(m *Manager) { m.listeners = f }
}

// WithSourceFactory overrides the per-session fallback randomness.
func WithSourceFactory(f func() corerps.Source) Option {
	return func(m *Manager) {
		if f != nil {
			m.newSource = f
		}
	}
}

func WithRoundIDs(f func() string) Option {
	return func(m *Manager) { m.newRoundID = f }
}

// Manager hosts at most one session per player per room.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	store        score.Store
	bot          corerps.Bot
	cfg          Config
	allowedRooms map[string]struct{}
	clock        Clock
	listeners    ListenerFactory
	newSource    func() corerps.Source
	newRoundID   func() string
	logger       *zap.Logger
}

func NewManager(store score.Store, bot corerps.Bot, cfg Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("score store is required")
	}
	if bot == nil {
		return nil, fmt.Errorf("bot is required")
	}
	if cfg.DefaultDifficulty == "" {
		cfg.DefaultDifficulty = domain.Easy
	}
	if d, ok := domain.ParseDifficulty(string(cfg.DefaultDifficulty)); ok {
		cfg.DefaultDifficulty = d
	} else {
		return nil, fmt.Errorf("unknown default difficulty %q", cfg.DefaultDifficulty)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedRooms := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		normalized := strings.ToLower(strings.TrimSpace(room))
		if normalized == "" {
			continue
		}
		allowedRooms[normalized] = struct{}{}
	}

	m := &Manager{
		sessions:     make(map[string]*Session),
		store:        store,
		bot:          bot,
		cfg:          cfg,
		allowedRooms: allowedRooms,
		clock:        SystemClock(),
		newSource: func() corerps.Source {
			return rand.New(rand.NewSource(rand.Int63()))
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start opens a session. When one is already running for the player, its live
// snapshot comes back with ErrSessionInProgress.
func (m *Manager) Start(ctx context.Context, meta SessionMeta, difficulty domain.Difficulty) (Snapshot, error) {
	if err := m.ensureRoomAllowed(meta); err != nil {
		return Snapshot{}, err
	}
	if difficulty == "" {
		difficulty = m.cfg.DefaultDifficulty
	}
	key := sessionKey(meta)

	if existing, err := m.reserve(key); err != nil {
		if existing != nil {
			return existing.Snapshot(), err
		}
		return Snapshot{}, err
	}

	var listener Listener
	if m.listeners != nil {
		listener = m.listeners(meta)
	}
	sess, err := NewSession(SessionConfig{
		Key:           key,
		Difficulty:    difficulty,
		Timings:       m.cfg.Timings,
		MaxIdleRounds: m.cfg.MaxIdleRounds,
		Bot:           m.bot,
		Source:        m.newSource(),
		Ledger:        m.store.Ledger(key),
		Clock:         m.clock,
		Listener:      listener,
		NewRoundID:    m.newRoundID,
		OnEnd:         m.forget,
		Logger:        m.logger,
	})
	if err != nil {
		m.release(key, nil)
		return Snapshot{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	m.sessions[key] = sess
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	snap, err := sess.Start(ctx)
	if err != nil {
		m.release(key, sess)
		return Snapshot{}, err
	}
	m.logger.Info("rps_session_started",
		zap.String("session", key),
		zap.String("difficulty", string(difficulty)),
		zap.Bool("score_volatile", snap.ScoreVolatile),
	)
	return snap, nil
}

// reserve checks limits and inserts a nil placeholder so concurrent starts
// for the same player see the slot as taken.
func (m *Manager) reserve(key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	if existing, ok := m.sessions[key]; ok {
		return existing, ErrSessionInProgress
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}
	m.sessions[key] = nil
	return nil, nil
}

func (m *Manager) release(key string, sess *Session) {
	m.mu.Lock()
	if cur, ok := m.sessions[key]; ok && cur == sess {
		delete(m.sessions, key)
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// forget drops a session that ended on its own.
func (m *Manager) forget(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[sess.Key()]; ok && cur == sess {
		delete(m.sessions, sess.Key())
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

func (m *Manager) Play(_ context.Context, meta SessionMeta, sym domain.Symbol) (Snapshot, error) {
	sess, err := m.lookup(meta)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := sess.Submit(sym)
	if errors.Is(err, ErrSessionClosed) {
		return Snapshot{}, ErrSessionNotFound
	}
	return snap, err
}

func (m *Manager) Status(_ context.Context, meta SessionMeta) (Snapshot, error) {
	sess, err := m.lookup(meta)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Stop closes the player's session and returns its last snapshot.
func (m *Manager) Stop(_ context.Context, meta SessionMeta) (Snapshot, error) {
	key := sessionKey(meta)
	m.mu.Lock()
	sess, ok := m.sessions[key]
	if !ok || sess == nil {
		m.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	delete(m.sessions, key)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	sess.Close()
	snap := sess.Snapshot()
	m.logger.Info("rps_session_stopped", zap.String("session", key), zap.Int("rounds", snap.RoundNumber))
	return snap, nil
}

// ScoreReport is a player's standing. Volatile means the value never reached the ledger.
type ScoreReport struct {
	Score    domain.Score
	Volatile bool
	Live     bool
}

func (m *Manager) Score(ctx context.Context, meta SessionMeta) (ScoreReport, error) {
	if sess, err := m.lookup(meta); err == nil {
		sc, volatile := sess.Score()
		return ScoreReport{Score: sc, Volatile: volatile, Live: true}, nil
	}
	sc, err := m.store.Ledger(sessionKey(meta)).Load(ctx)
	if err != nil {
		return ScoreReport{}, err
	}
	return ScoreReport{Score: sc}, nil
}

// ResetScore clears the ledger and any live counter. The live counter is
// cleared even when the ledger is unreachable.
func (m *Manager) ResetScore(ctx context.Context, meta SessionMeta) error {
	if sess, err := m.lookup(meta); err == nil {
		sess.ResetScore()
	}
	return m.store.Ledger(sessionKey(meta)).Reset(ctx)
}

func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// Close tears down every session. Later calls fail with ErrSessionClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for key, s := range m.sessions {
		if s != nil {
			sessions = append(sessions, s)
		}
		delete(m.sessions, key)
	}
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) lookup(meta SessionMeta) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionKey(meta)]
	if !ok || sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *Manager) ensureRoomAllowed(meta SessionMeta) error {
	if len(m.allowedRooms) == 0 {
		return nil
	}
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	if room == "" {
		room = "unknown-room"
	}
	if _, ok := m.allowedRooms[room]; ok {
		return nil
	}
	m.logger.Info("rps room access denied",
		zap.String("room", room),
		zap.String("sender", strings.TrimSpace(meta.Sender)),
	)
	return ErrRoomNotAllowed
}

func sessionKey(meta SessionMeta) string {
	return score.PlayerKey(meta.Room, meta.Sender)
}
