package rps

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/park285/rpsminus-bot/internal/domain"
)

// scriptedBot always plays the same pair and final symbol.
type scriptedBot struct {
	pair      Pair
	final     domain.Symbol
	pairCalls int
	finalArgs []Pair
}

func (b *scriptedBot) ProvisionalPair(domain.Difficulty) Pair {
	b.pairCalls++
	return b.pair
}

func (b *scriptedBot) ChooseFinal(_ domain.Difficulty, bot, player Pair) domain.Symbol {
	b.finalArgs = append(b.finalArgs, bot, player)
	return b.final
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRound() *Round {
	return NewRound("r1", domain.Easy, DefaultTimings(), t0)
}

func TestRoundScriptedPlayerWins(t *testing.T) {
	r := newTestRound()
	bot := &scriptedBot{pair: Pair{domain.Paper, domain.Scissors}, final: domain.Scissors}

	if err := r.Submit(domain.Rock, bot, t0.Add(time.Second)); err != nil {
		t.Fatalf("first pick: %v", err)
	}
	if r.Phase() != PhaseAwaitingSecondPick {
		t.Fatalf("phase = %s", r.Phase())
	}
	if bot.pairCalls != 0 {
		t.Fatalf("bot pair must not be generated before the second pick")
	}
	if err := r.Submit(domain.Paper, bot, t0.Add(2*time.Second)); err != nil {
		t.Fatalf("second pick: %v", err)
	}
	if r.Phase() != PhaseAwaitingDiscard || bot.pairCalls != 1 {
		t.Fatalf("phase = %s pairCalls = %d", r.Phase(), bot.pairCalls)
	}
	snap := r.Snapshot(t0.Add(2 * time.Second))
	if snap.BotFirst != domain.Paper || snap.BotSecond != domain.Scissors || snap.BotFinal != domain.SymbolNone {
		t.Fatalf("unexpected bot fields in discard phase: %+v", snap)
	}
	if err := r.Submit(domain.Rock, bot, t0.Add(3*time.Second)); err != nil {
		t.Fatalf("keep: %v", err)
	}
	if r.Phase() != PhaseResolved || r.Result() != domain.ResultPlayerWins {
		t.Fatalf("phase = %s result = %s", r.Phase(), r.Result())
	}
	if len(bot.finalArgs) != 2 || bot.finalArgs[1] != (Pair{domain.Rock, domain.Paper}) {
		t.Fatalf("ChooseFinal saw %v", bot.finalArgs)
	}
	snap = r.Snapshot(t0.Add(3 * time.Second))
	if snap.PlayerFinal != domain.Rock || snap.BotFinal != domain.Scissors {
		t.Fatalf("unexpected finals: %+v", snap)
	}
}

func TestRoundRejectsDuplicateSecondPickWithoutMutation(t *testing.T) {
	r := newTestRound()
	bot := &scriptedBot{pair: Pair{domain.Rock, domain.Paper}, final: domain.Rock}
	if err := r.Submit(domain.Paper, bot, t0); err != nil {
		t.Fatalf("first pick: %v", err)
	}
	before := *r
	for i := 0; i < 5; i++ {
		err := r.Submit(domain.Paper, bot, t0.Add(time.Duration(i)*time.Millisecond))
		if !errors.Is(err, ErrInvalidChoice) {
			t.Fatalf("expected ErrInvalidChoice, got %v", err)
		}
		if !reflect.DeepEqual(before, *r) {
			t.Fatalf("round mutated by rejected input:\nbefore %+v\nafter  %+v", before, *r)
		}
	}
	if bot.pairCalls != 0 {
		t.Fatalf("rejected input must not reach the bot")
	}
}

func TestRoundRejectsIllegalInputs(t *testing.T) {
	bot := &scriptedBot{pair: Pair{domain.Rock, domain.Paper}, final: domain.Rock}

	r := newTestRound()
	if err := r.Submit(domain.SymbolNone, bot, t0); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("out-of-domain symbol: %v", err)
	}
	if err := r.Submit(domain.Symbol(9), bot, t0); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("out-of-domain symbol: %v", err)
	}

	_ = r.Submit(domain.Rock, bot, t0)
	_ = r.Submit(domain.Scissors, bot, t0)
	before := *r
	if err := r.Submit(domain.Paper, bot, t0); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("keeping a symbol outside the pair: %v", err)
	}
	if !reflect.DeepEqual(before, *r) {
		t.Fatalf("round mutated by rejected keep")
	}

	_ = r.Submit(domain.Scissors, bot, t0)
	before = *r
	for _, s := range domain.Symbols() {
		if err := r.Submit(s, bot, t0); !errors.Is(err, ErrInvalidChoice) {
			t.Fatalf("input after resolution: %v", err)
		}
	}
	if !reflect.DeepEqual(before, *r) {
		t.Fatalf("resolved round mutated")
	}
}

func TestRoundDeadlineResetsPerPhase(t *testing.T) {
	r := newTestRound()
	bot := &scriptedBot{pair: Pair{domain.Rock, domain.Paper}, final: domain.Rock}
	if got := r.Deadline(); !got.Equal(t0.Add(DefaultFirstPickWindow)) {
		t.Fatalf("first deadline = %v", got)
	}
	at := t0.Add(1500 * time.Millisecond)
	_ = r.Submit(domain.Rock, bot, at)
	if got := r.Deadline(); !got.Equal(at.Add(DefaultSecondPickWindow)) {
		t.Fatalf("second deadline = %v", got)
	}
	at = at.Add(3 * time.Second)
	_ = r.Submit(domain.Paper, bot, at)
	if got := r.Deadline(); !got.Equal(at.Add(DefaultDiscardWindow)) {
		t.Fatalf("discard deadline = %v", got)
	}
	at = at.Add(time.Second)
	_ = r.Submit(domain.Paper, bot, at)
	if got := r.Deadline(); !got.Equal(at.Add(DefaultResultHold)) {
		t.Fatalf("hold deadline = %v", got)
	}
}

func TestRoundHardModeUsesPlayerPair(t *testing.T) {
	r := NewRound("r2", domain.Hard, DefaultTimings(), t0)
	// pair source yields Rock then Paper from the remaining {Paper, Scissors}.
	e := NewEngine(&fixedSource{values: []int{0, 0}})
	_ = r.Submit(domain.Rock, e, t0)
	_ = r.Submit(domain.Scissors, e, t0)
	if err := r.Submit(domain.Scissors, e, t0); err != nil {
		t.Fatalf("keep: %v", err)
	}
	snap := r.Snapshot(t0)
	if snap.BotFirst != domain.Rock || snap.BotSecond != domain.Paper {
		t.Fatalf("unexpected bot pair: %+v", snap)
	}
	if snap.BotFinal != domain.Rock || snap.Result != domain.ResultBotWins {
		t.Fatalf("hard bot should keep Rock and beat Scissors: %+v", snap)
	}
}

func TestRoundSeededFullRounds(t *testing.T) {
	e := NewEngine(rand.New(rand.NewSource(11)))
	src := rand.New(rand.NewSource(12))
	for i := 0; i < 500; i++ {
		r := NewRound("seed", domain.Easy, DefaultTimings(), t0)
		for r.Phase() != PhaseResolved {
			sym, ok := r.Fallback(src)
			if !ok {
				t.Fatalf("no fallback in phase %s", r.Phase())
			}
			if err := r.Submit(sym, e, t0); err != nil {
				t.Fatalf("fallback input rejected: %v", err)
			}
		}
		s := r.Snapshot(t0)
		if s.PlayerFirst == s.PlayerSecond || s.BotFirst == s.BotSecond {
			t.Fatalf("pair invariant broken: %+v", s)
		}
		if s.PlayerFinal != s.PlayerFirst && s.PlayerFinal != s.PlayerSecond {
			t.Fatalf("player final outside pair: %+v", s)
		}
		if s.BotFinal != s.BotFirst && s.BotFinal != s.BotSecond {
			t.Fatalf("bot final outside pair: %+v", s)
		}
		if s.Result != domain.ResultOf(s.PlayerFinal, s.BotFinal) {
			t.Fatalf("result mismatch: %+v", s)
		}
	}
}

type fixedSource struct {
	values []int
	i      int
}

func (f *fixedSource) Intn(n int) int {
	v := f.values[f.i%len(f.values)] % n
	f.i++
	return v
}

func TestRoundIgnoresBotFinalOutsideItsPair(t *testing.T) {
	r := newTestRound()
	bot := &scriptedBot{pair: Pair{domain.Paper, domain.Scissors}, final: domain.Rock}
	for i, sym := range []domain.Symbol{domain.Rock, domain.Scissors, domain.Rock} {
		if err := r.Submit(sym, bot, t0.Add(time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	snap := r.Snapshot(t0.Add(4 * time.Second))
	if snap.BotFinal != domain.Paper || snap.Result != domain.ResultBotWins {
		t.Fatalf("bot final = %s result = %s", snap.BotFinal, snap.Result)
	}
}
