package rps

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/park285/rpsminus-bot/internal/domain"
)

// Source is the slice of *rand.Rand the engine needs.
type Source interface {
	Intn(n int) int
}

// Pair is a side's provisional pair of distinct symbols, in the order they were picked.
type Pair [2]domain.Symbol

func NewPair(first, second domain.Symbol) (Pair, error) {
	if !first.Valid() || !second.Valid() {
		return Pair{}, fmt.Errorf("%w: symbol out of domain", ErrInvalidChoice)
	}
	if first == second {
		return Pair{}, fmt.Errorf("%w: pair symbols must differ", ErrInvalidChoice)
	}
	return Pair{first, second}, nil
}

func (p Pair) First() domain.Symbol  { return p[0] }
func (p Pair) Second() domain.Symbol { return p[1] }

func (p Pair) Contains(s domain.Symbol) bool {
	return s.Valid() && (p[0] == s || p[1] == s)
}

// Bot produces the bot's side of a round.
type Bot interface {
	ProvisionalPair(d domain.Difficulty) Pair
	ChooseFinal(d domain.Difficulty, bot, player Pair) domain.Symbol
}

// Engine is the default Bot: random pairs, random keep on easy, maximin keep on hard.
type Engine struct {
	mu  sync.Mutex
	src Source
}

func NewEngine(src Source) *Engine {
	if src == nil {
		src = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Engine{src: src}
}

// ProvisionalPair picks the first symbol among three and the second among the remaining two.
// The player's picks are not an input.
func (e *Engine) ProvisionalPair(_ domain.Difficulty) Pair {
	e.mu.Lock()
	defer e.mu.Unlock()
	all := domain.Symbols()
	i := e.src.Intn(len(all))
	first := all[i]
	rest := make([]domain.Symbol, 0, len(all)-1)
	for j, s := range all {
		if j != i {
			rest = append(rest, s)
		}
	}
	return Pair{first, rest[e.src.Intn(len(rest))]}
}

func (e *Engine) ChooseFinal(d domain.Difficulty, bot, player Pair) domain.Symbol {
	if d == domain.Hard {
		return Maximin(bot, player)
	}
	return e.randomKeep(bot)
}

// randomKeep is the easy discard. It only ever sees the bot's own pair.
func (e *Engine) randomKeep(bot Pair) domain.Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bot[e.src.Intn(2)]
}

// payoff scores a bot symbol against a player symbol from the bot's side.
func payoff(bot, player domain.Symbol) int {
	switch domain.Beats(bot, player) {
	case domain.FirstWins:
		return 1
	case domain.SecondWins:
		return -1
	default:
		return 0
	}
}

// Maximin keeps the bot candidate whose worst case against the player's pair is best.
// On equal values the earlier candidate in the pair wins.
func Maximin(bot, player Pair) domain.Symbol {
	best := bot[0]
	bestValue := worstCase(bot[0], player)
	for _, candidate := range bot[1:] {
		if v := worstCase(candidate, player); v > bestValue {
			best, bestValue = candidate, v
		}
	}
	return best
}

func worstCase(candidate domain.Symbol, player Pair) int {
	worst := payoff(candidate, player[0])
	if v := payoff(candidate, player[1]); v < worst {
		worst = v
	}
	return worst
}
