package rps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/rpsminus-bot/internal/domain"
	"github.com/park285/rpsminus-bot/internal/metrics"
	"github.com/park285/rpsminus-bot/internal/obslog"
	corerps "github.com/park285/rpsminus-bot/internal/rps"
	"github.com/park285/rpsminus-bot/internal/score"
)

const ledgerTimeout = 3 * time.Second

// ErrSessionClosed is returned for input sent to a stopped or ended session.
var ErrSessionClosed = errors.New("rps session closed")

// Event says which transition produced a snapshot.
type Event int8

const (
	EventRoundStarted Event = iota
	EventAdvanced
	EventResolved
	EventEnded
)

func (e Event) String() string {
	switch e {
	case EventRoundStarted:
		return "round_started"
	case EventAdvanced:
		return "advanced"
	case EventResolved:
		return "resolved"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Snapshot is the read-only state handed to presenters.
type Snapshot struct {
	corerps.Snapshot
	SessionKey    string
	Event         Event
	RoundNumber   int
	Score         domain.Score
	ScoreVolatile bool
	// Forced is set when the countdown synthesized the input behind this snapshot.
	Forced bool
	Ended  bool
}

// Listener receives every snapshot a session emits. It runs with the session
// locked, so it must not call back into the session or its manager.
type Listener func(Snapshot)

type SessionConfig struct {
	Key        string
	Difficulty domain.Difficulty
	Timings    corerps.Timings
	// MaxIdleRounds ends the session after that many consecutive fully forced rounds. Zero disables.
	MaxIdleRounds int
	Bot           corerps.Bot
	Source        corerps.Source
	Ledger        score.Ledger
	Clock         Clock
	Listener      Listener
	NewRoundID    func() string
	// OnEnd runs without the session lock once the idle guard ends the session.
	OnEnd  func(*Session)
	Logger *zap.Logger
}

// Session drives consecutive rounds for one player.
type Session struct {
	mu sync.Mutex

	key           string
	difficulty    domain.Difficulty
	timings       corerps.Timings
	maxIdleRounds int
	bot           corerps.Bot
	src           corerps.Source
	ledger        score.Ledger
	clock         Clock
	listener      Listener
	newRoundID    func() string
	onEnd         func(*Session)
	logger        *zap.Logger

	round        *corerps.Round
	roundNumber  int
	gen          uint64
	timer        Timer
	score        domain.Score
	volatile     bool
	forcedInputs int
	idleRounds   int
	lastForced   bool
	lastEvent    Event
	closed       bool
	ended        bool
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Bot == nil {
		return nil, fmt.Errorf("bot is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("fallback source is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("score ledger is required")
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = domain.Easy
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.NewRoundID == nil {
		cfg.NewRoundID = uuid.NewString
	}
	if cfg.Listener == nil {
		cfg.Listener = func(Snapshot) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxIdleRounds < 0 {
		cfg.MaxIdleRounds = 0
	}
	return &Session{
		key:           cfg.Key,
		difficulty:    cfg.Difficulty,
		timings:       cfg.Timings,
		maxIdleRounds: cfg.MaxIdleRounds,
		bot:           cfg.Bot,
		src:           cfg.Source,
		ledger:        cfg.Ledger,
		clock:         cfg.Clock,
		listener:      cfg.Listener,
		newRoundID:    cfg.NewRoundID,
		onEnd:         cfg.OnEnd,
		logger:        cfg.Logger,
	}, nil
}

// Start loads the ledger once and opens the first round.
func (s *Session) Start(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if s.round != nil {
		return s.snapshotLocked(s.clock.Now()), nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, ledgerTimeout)
	sc, err := s.ledger.Load(loadCtx)
	cancel()
	if err != nil {
		s.degradeLocked("load", err)
	} else {
		s.score = sc
	}

	s.beginRoundLocked(s.clock.Now())
	return s.snapshotLocked(s.clock.Now()), nil
}

// Submit applies a player input. An ErrInvalidChoice leaves the session untouched.
func (s *Session) Submit(sym domain.Symbol) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.closed || s.round == nil {
		return Snapshot{}, ErrSessionClosed
	}
	phase := s.round.Phase()
	if err := s.round.Submit(sym, s.bot, now); err != nil {
		metrics.InvalidChoices.WithLabelValues(phase.String()).Inc()
		return s.snapshotLocked(now), err
	}
	s.afterTransitionLocked(now, false)
	return s.snapshotLocked(now), nil
}

// Tick forces the fallback input when the open phase has run out.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(s.clock.Now())
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.clock.Now())
}

// Score returns the live counter and whether it has stopped reaching the ledger.
func (s *Session) Score() (domain.Score, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.volatile
}

// ResetScore zeroes the live counter. The ledger is reset by the caller.
func (s *Session) ResetScore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = domain.Score{}
}

func (s *Session) Key() string { return s.key }

// Close cancels the pending deadline or next-round timer. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.stopTimerLocked()
}

func (s *Session) beginRoundLocked(now time.Time) {
	s.round = corerps.NewRound(s.newRoundID(), s.difficulty, s.timings, now)
	s.roundNumber++
	s.forcedInputs = 0
	s.lastForced = false
	s.gen++
	s.armDeadlineLocked()
	s.emitLocked(EventRoundStarted, now)
}

func (s *Session) afterTransitionLocked(now time.Time, forced bool) {
	s.gen++
	s.stopTimerLocked()
	s.lastForced = forced
	if forced {
		s.forcedInputs++
	}
	if s.round.Phase() != corerps.PhaseResolved {
		s.armDeadlineLocked()
		s.emitLocked(EventAdvanced, now)
		return
	}
	s.resolveLocked(now)
}

func (s *Session) resolveLocked(now time.Time) {
	result := s.round.Result()
	s.score = s.score.Record(result)
	metrics.RoundsResolved.WithLabelValues(string(s.difficulty), result.String()).Inc()

	if !s.volatile {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		err := s.ledger.Save(ctx, s.score)
		cancel()
		if err != nil {
			s.degradeLocked("save", err)
		}
	}

	// every input of the round was synthesized: three forced transitions
	if s.forcedInputs >= 3 {
		s.idleRounds++
	} else {
		s.idleRounds = 0
	}

	s.logger.Info("rps_round_resolved", append(obslog.SessionFields(s.key, s.round.ID(), ""),
		zap.String("difficulty", string(s.difficulty)),
		zap.String("result", result.String()),
		zap.Uint64("player_wins", s.score.PlayerWins),
		zap.Uint64("bot_wins", s.score.BotWins),
		zap.Int("idle_rounds", s.idleRounds),
	)...)

	gen := s.gen
	s.timer = s.clock.AfterFunc(s.timings.Window(corerps.PhaseResolved), func() { s.holdExpired(gen) })
	s.emitLocked(EventResolved, now)
}

func (s *Session) holdExpired(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if s.maxIdleRounds > 0 && s.idleRounds >= s.maxIdleRounds {
		s.ended = true
		s.closeLocked()
		s.logger.Info("rps_session_idle_ended", append(obslog.SessionFields(s.key, s.round.ID(), ""),
			zap.Int("idle_rounds", s.idleRounds),
		)...)
		s.emitLocked(EventEnded, now)
		onEnd := s.onEnd
		s.mu.Unlock()
		if onEnd != nil {
			onEnd(s)
		}
		return
	}
	s.beginRoundLocked(now)
	s.mu.Unlock()
}

func (s *Session) deadlineReached(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.tickLocked(s.clock.Now())
}

func (s *Session) tickLocked(now time.Time) {
	if s.closed || s.round == nil || !s.round.Expired(now) {
		return
	}
	phase := s.round.Phase()
	sym, ok := s.round.Fallback(s.src)
	if !ok {
		return
	}
	if err := s.round.Submit(sym, s.bot, now); err != nil {
		// fallback symbols are legal by construction
		s.logger.Error("rps_forced_move_rejected", append(obslog.SessionFields(s.key, s.round.ID(), phase.String()),
			zap.Error(err),
		)...)
		return
	}
	metrics.ForcedMoves.WithLabelValues(phase.String()).Inc()
	s.logger.Debug("rps_forced_move", append(obslog.SessionFields(s.key, s.round.ID(), phase.String()),
		zap.String("symbol", sym.String()),
	)...)
	s.afterTransitionLocked(now, true)
}

func (s *Session) armDeadlineLocked() {
	s.stopTimerLocked()
	gen := s.gen
	wait := s.round.Remaining(s.clock.Now())
	s.timer = s.clock.AfterFunc(wait, func() { s.deadlineReached(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// degradeLocked switches the session to an in-memory counter. It reports once.
func (s *Session) degradeLocked(op string, err error) {
	if s.volatile {
		return
	}
	s.volatile = true
	metrics.LedgerFailures.Inc()
	fields := obslog.SessionFields(s.key, "", "")
	if s.round != nil {
		fields = obslog.SessionFields(s.key, s.round.ID(), "")
	}
	s.logger.Warn("rps_ledger_degraded", append(fields, zap.String("op", op), zap.Error(err))...)
}

func (s *Session) emitLocked(ev Event, now time.Time) {
	s.lastEvent = ev
	s.listener(s.snapshotLocked(now))
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		SessionKey:    s.key,
		Event:         s.lastEvent,
		RoundNumber:   s.roundNumber,
		Score:         s.score,
		ScoreVolatile: s.volatile,
		Forced:        s.lastForced,
		Ended:         s.ended,
	}
	if s.round != nil {
		snap.Snapshot = s.round.Snapshot(now)
	}
	return snap
}
