package rps

import (
	"errors"
	"fmt"
	"time"

	"github.com/park285/rpsminus-bot/internal/domain"
)

// ErrInvalidChoice is returned for any input that is illegal in the current phase.
// The round is left untouched.
var ErrInvalidChoice = errors.New("invalid choice")

type Phase int8

const (
	PhaseAwaitingFirstPick Phase = iota
	PhaseAwaitingSecondPick
	PhaseAwaitingDiscard
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingFirstPick:
		return "awaiting_first_pick"
	case PhaseAwaitingSecondPick:
		return "awaiting_second_pick"
	case PhaseAwaitingDiscard:
		return "awaiting_discard"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// stage is the phase-specific payload of a round. Each variant carries exactly
// the fields that are known in that phase.
type stage interface {
	phase() Phase
}

type awaitingFirst struct{}

type awaitingSecond struct {
	first domain.Symbol
}

type awaitingDiscard struct {
	player Pair
	bot    Pair
}

type resolved struct {
	player      Pair
	bot         Pair
	playerFinal domain.Symbol
	botFinal    domain.Symbol
	result      domain.Result
}

func (awaitingFirst) phase() Phase   { return PhaseAwaitingFirstPick }
func (awaitingSecond) phase() Phase  { return PhaseAwaitingSecondPick }
func (awaitingDiscard) phase() Phase { return PhaseAwaitingDiscard }
func (resolved) phase() Phase        { return PhaseResolved }

// Round is one play from first pick to resolution.
type Round struct {
	id         string
	difficulty domain.Difficulty
	timings    Timings
	stage      stage
	deadline   time.Time
}

func NewRound(id string, d domain.Difficulty, t Timings, now time.Time) *Round {
	t = t.normalized()
	return &Round{
		id:         id,
		difficulty: d,
		timings:    t,
		stage:      awaitingFirst{},
		deadline:   now.Add(t.Window(PhaseAwaitingFirstPick)),
	}
}

func (r *Round) ID() string                     { return r.id }
func (r *Round) Difficulty() domain.Difficulty { return r.difficulty }
func (r *Round) Phase() Phase                   { return r.stage.phase() }
func (r *Round) Deadline() time.Time            { return r.deadline }

// Result is ResultPending until the round is resolved.
func (r *Round) Result() domain.Result {
	if st, ok := r.stage.(resolved); ok {
		return st.result
	}
	return domain.ResultPending
}

// Submit applies one player input. The bot is consulted when the player's pair
// closes (provisional pair) and when the player keeps a symbol (final choice).
func (r *Round) Submit(sym domain.Symbol, bot Bot, now time.Time) error {
	if !sym.Valid() {
		return fmt.Errorf("%w: symbol out of domain", ErrInvalidChoice)
	}

	var next stage
	switch st := r.stage.(type) {
	case awaitingFirst:
		next = awaitingSecond{first: sym}
	case awaitingSecond:
		if sym == st.first {
			return fmt.Errorf("%w: %s already picked", ErrInvalidChoice, sym)
		}
		next = awaitingDiscard{
			player: Pair{st.first, sym},
			bot:    bot.ProvisionalPair(r.difficulty),
		}
	case awaitingDiscard:
		if !st.player.Contains(sym) {
			return fmt.Errorf("%w: %s is not in the kept pair", ErrInvalidChoice, sym)
		}
		botFinal := bot.ChooseFinal(r.difficulty, st.bot, st.player)
		if !st.bot.Contains(botFinal) {
			botFinal = st.bot.First()
		}
		next = resolved{
			player:      st.player,
			bot:         st.bot,
			playerFinal: sym,
			botFinal:    botFinal,
			result:      domain.ResultOf(sym, botFinal),
		}
	case resolved:
		return fmt.Errorf("%w: round already resolved", ErrInvalidChoice)
	default:
		return fmt.Errorf("%w: unknown phase", ErrInvalidChoice)
	}

	r.stage = next
	r.deadline = now.Add(r.timings.Window(next.phase()))
	return nil
}

// Snapshot is a read-only view of a round. Unknown symbols are SymbolNone.
type Snapshot struct {
	RoundID      string
	Difficulty   domain.Difficulty
	Phase        Phase
	PlayerFirst  domain.Symbol
	PlayerSecond domain.Symbol
	PlayerFinal  domain.Symbol
	BotFirst     domain.Symbol
	BotSecond    domain.Symbol
	BotFinal     domain.Symbol
	Result       domain.Result
	Deadline     time.Time
	Remaining    time.Duration
}

func (r *Round) Snapshot(now time.Time) Snapshot {
	s := Snapshot{
		RoundID:    r.id,
		Difficulty: r.difficulty,
		Phase:      r.Phase(),
		Deadline:   r.deadline,
		Remaining:  r.Remaining(now),
	}
	switch st := r.stage.(type) {
	case awaitingSecond:
		s.PlayerFirst = st.first
	case awaitingDiscard:
		s.PlayerFirst, s.PlayerSecond = st.player[0], st.player[1]
		s.BotFirst, s.BotSecond = st.bot[0], st.bot[1]
	case resolved:
		s.PlayerFirst, s.PlayerSecond = st.player[0], st.player[1]
		s.BotFirst, s.BotSecond = st.bot[0], st.bot[1]
		s.PlayerFinal, s.BotFinal = st.playerFinal, st.botFinal
		s.Result = st.result
	}
	return s
}
