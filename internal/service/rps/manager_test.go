package rps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/rpsminus-bot/internal/domain"
	corerps "github.com/park285/rpsminus-bot/internal/rps"
	"github.com/park285/rpsminus-bot/internal/score"
)

func newTestManager(t *testing.T, cfg Config, opts ...Option) (*Manager, *fakeClock, *score.MemoryStore) {
	t.Helper()
	clock := newFakeClock(t0)
	store := score.NewMemoryStore()
	bot := scriptedBot{pair: corerps.Pair{domain.Rock, domain.Scissors}, final: domain.Scissors}
	opts = append([]Option{
		WithClock(clock),
		WithSourceFactory(func() corerps.Source { return zeroSource{} }),
	}, opts...)
	m, err := NewManager(store, bot, cfg, nil, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	return m, clock, store
}

var alice = SessionMeta{SessionID: "s1", Room: "lobby", Sender: "alice"}

func TestManagerStartIsExclusivePerPlayer(t *testing.T) {
	m, _, _ := newTestManager(t, Config{})
	ctx := context.Background()

	first, err := m.Start(ctx, alice, domain.Hard)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.Difficulty != domain.Hard {
		t.Fatalf("difficulty = %s", first.Difficulty)
	}
	again, err := m.Start(ctx, alice, domain.Easy)
	if !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	if again.RoundID != first.RoundID || again.Difficulty != domain.Hard {
		t.Fatalf("second Start should return the live session, got %+v", again)
	}

	bob := SessionMeta{Room: "lobby", Sender: "bob"}
	if _, err := m.Start(ctx, bob, ""); err != nil {
		t.Fatalf("Start for another player: %v", err)
	}
	if m.ActiveSessions() != 2 {
		t.Fatalf("active = %d", m.ActiveSessions())
	}
}

func TestManagerDefaultDifficulty(t *testing.T) {
	m, _, _ := newTestManager(t, Config{DefaultDifficulty: domain.Hard})
	snap, err := m.Start(context.Background(), alice, "")
	if err != nil || snap.Difficulty != domain.Hard {
		t.Fatalf("Start = %+v, %v", snap, err)
	}
	if _, err := NewManager(score.NewMemoryStore(), scriptedBot{}, Config{DefaultDifficulty: "nightmare"}, nil); err == nil {
		t.Fatalf("expected unknown default difficulty to fail")
	}
}

func TestManagerLimits(t *testing.T) {
	m, _, _ := newTestManager(t, Config{MaxSessions: 1, AllowedRooms: []string{" Lobby "}})
	ctx := context.Background()

	if _, err := m.Start(ctx, SessionMeta{Room: "elsewhere", Sender: "alice"}, ""); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("expected ErrRoomNotAllowed, got %v", err)
	}
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Start(ctx, SessionMeta{Room: "lobby", Sender: "bob"}, ""); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}
}

func TestManagerPlayAndStatus(t *testing.T) {
	m, clock, _ := newTestManager(t, Config{})
	ctx := context.Background()

	if _, err := m.Play(ctx, alice, domain.Rock); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Play without session: %v", err)
	}
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, s := range []domain.Symbol{domain.Rock, domain.Paper} {
		if _, err := m.Play(ctx, alice, s); err != nil {
			t.Fatalf("Play(%s): %v", s, err)
		}
	}
	if _, err := m.Play(ctx, alice, domain.Scissors); !errors.Is(err, corerps.ErrInvalidChoice) {
		t.Fatalf("discarding outside the pair: %v", err)
	}

	clock.Advance(500 * time.Millisecond)
	snap, err := m.Status(ctx, alice)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Phase != corerps.PhaseAwaitingDiscard || snap.Remaining != corerps.DefaultDiscardWindow-500*time.Millisecond {
		t.Fatalf("status = %+v", snap)
	}
}

func TestManagerScoreAndReset(t *testing.T) {
	m, _, store := newTestManager(t, Config{})
	ctx := context.Background()

	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, s := range []domain.Symbol{domain.Rock, domain.Paper, domain.Rock} {
		if _, err := m.Play(ctx, alice, s); err != nil {
			t.Fatalf("Play(%s): %v", s, err)
		}
	}
	rep, err := m.Score(ctx, alice)
	if err != nil || !rep.Live || rep.Score != (domain.Score{PlayerWins: 1}) {
		t.Fatalf("live score = %+v, %v", rep, err)
	}

	if _, err := m.Stop(ctx, alice); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	rep, err = m.Score(ctx, alice)
	if err != nil || rep.Live || rep.Score != (domain.Score{PlayerWins: 1}) {
		t.Fatalf("stored score = %+v, %v", rep, err)
	}

	if err := m.ResetScore(ctx, alice); err != nil {
		t.Fatalf("ResetScore: %v", err)
	}
	got, _ := store.Ledger(score.PlayerKey("lobby", "alice")).Load(ctx)
	if got != (domain.Score{}) {
		t.Fatalf("ledger not reset: %+v", got)
	}
}

func TestManagerResetZeroesLiveCounter(t *testing.T) {
	m, _, _ := newTestManager(t, Config{})
	ctx := context.Background()
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, s := range []domain.Symbol{domain.Rock, domain.Paper, domain.Rock} {
		_, _ = m.Play(ctx, alice, s)
	}
	if err := m.ResetScore(ctx, alice); err != nil {
		t.Fatalf("ResetScore: %v", err)
	}
	snap, _ := m.Status(ctx, alice)
	if snap.Score != (domain.Score{}) {
		t.Fatalf("live counter = %+v", snap.Score)
	}
}

func TestManagerStopCancelsTimers(t *testing.T) {
	m, clock, _ := newTestManager(t, Config{})
	ctx := context.Background()
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap, err := m.Stop(ctx, alice)
	if err != nil || snap.RoundNumber != 1 {
		t.Fatalf("Stop = %+v, %v", snap, err)
	}
	if clock.pending() != 0 {
		t.Fatalf("timers survived Stop")
	}
	if _, err := m.Status(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Status after Stop: %v", err)
	}
	if _, err := m.Stop(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestManagerForgetsIdleSessions(t *testing.T) {
	var last Snapshot
	var metaSeen SessionMeta
	m, clock, _ := newTestManager(t, Config{MaxIdleRounds: 1},
		WithListenerFactory(func(meta SessionMeta) Listener {
			metaSeen = meta
			return func(s Snapshot) { last = s }
		}),
	)
	ctx := context.Background()
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if metaSeen != alice {
		t.Fatalf("listener factory got %+v", metaSeen)
	}
	clock.Advance(time.Minute)

	if !last.Ended || last.Event != EventEnded {
		t.Fatalf("last snapshot = %+v", last)
	}
	if m.ActiveSessions() != 0 {
		t.Fatalf("ended session still registered")
	}
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("restart after idle end: %v", err)
	}
}

func TestManagerClose(t *testing.T) {
	m, clock, _ := newTestManager(t, Config{})
	ctx := context.Background()
	if _, err := m.Start(ctx, alice, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Close()
	if clock.pending() != 0 {
		t.Fatalf("timers survived Close")
	}
	if _, err := m.Start(ctx, alice, ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Start after Close: %v", err)
	}
}
