package rps

import (
	"time"

	"github.com/park285/rpsminus-bot/internal/domain"
)

const (
	DefaultFirstPickWindow  = 4000 * time.Millisecond
	DefaultSecondPickWindow = 4000 * time.Millisecond
	DefaultDiscardWindow    = 2000 * time.Millisecond
	DefaultResultHold       = 3000 * time.Millisecond

	// TickInterval is the countdown display granularity.
	TickInterval = 10 * time.Millisecond
)

// Timings bounds how long each phase stays open. ResultHold is the delay
// between resolution and the next round.
type Timings struct {
	FirstPick  time.Duration
	SecondPick time.Duration
	Discard    time.Duration
	ResultHold time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		FirstPick:  DefaultFirstPickWindow,
		SecondPick: DefaultSecondPickWindow,
		Discard:    DefaultDiscardWindow,
		ResultHold: DefaultResultHold,
	}
}

func (t Timings) normalized() Timings {
	d := DefaultTimings()
	if t.FirstPick <= 0 {
		t.FirstPick = d.FirstPick
	}
	if t.SecondPick <= 0 {
		t.SecondPick = d.SecondPick
	}
	if t.Discard <= 0 {
		t.Discard = d.Discard
	}
	if t.ResultHold <= 0 {
		t.ResultHold = d.ResultHold
	}
	return t
}

// Window is the full duration of a phase, restarted on every transition.
func (t Timings) Window(p Phase) time.Duration {
	switch p {
	case PhaseAwaitingFirstPick:
		return t.FirstPick
	case PhaseAwaitingSecondPick:
		return t.SecondPick
	case PhaseAwaitingDiscard:
		return t.Discard
	default:
		return t.ResultHold
	}
}

// Remaining is clamped at zero.
func (r *Round) Remaining(now time.Time) time.Duration {
	left := r.deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether an open phase has reached its deadline.
func (r *Round) Expired(now time.Time) bool {
	if r.Phase() == PhaseResolved {
		return false
	}
	return !now.Before(r.deadline)
}

// Fallback picks the input to synthesize when the countdown runs out.
// It returns false once the round is resolved.
func (r *Round) Fallback(src Source) (domain.Symbol, bool) {
	switch st := r.stage.(type) {
	case awaitingFirst:
		all := domain.Symbols()
		return all[src.Intn(len(all))], true
	case awaitingSecond:
		rest := make([]domain.Symbol, 0, 2)
		for _, s := range domain.Symbols() {
			if s != st.first {
				rest = append(rest, s)
			}
		}
		return rest[src.Intn(len(rest))], true
	case awaitingDiscard:
		return st.player[src.Intn(2)], true
	default:
		return domain.SymbolNone, false
	}
}
