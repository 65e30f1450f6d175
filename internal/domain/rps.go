package domain

import "strings"

// Symbol is one of the three hand shapes. The zero value means "no symbol".
type Symbol int8

const (
	SymbolNone Symbol = iota
	Rock
	Paper
	Scissors
)

// Symbols lists the domain in its fixed enumeration order.
func Symbols() []Symbol {
	return []Symbol{Rock, Paper, Scissors}
}

func (s Symbol) Valid() bool {
	return s >= Rock && s <= Scissors
}

func (s Symbol) String() string {
	switch s {
	case Rock:
		return "Rock"
	case Paper:
		return "Paper"
	case Scissors:
		return "Scissors"
	default:
		return "None"
	}
}

// ParseSymbol accepts English names, single letters and the Korean names used in chat.
func ParseSymbol(s string) (Symbol, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "r", "바위", "주먹":
		return Rock, true
	case "paper", "p", "보", "보자기":
		return Paper, true
	case "scissors", "scissor", "s", "가위":
		return Scissors, true
	default:
		return SymbolNone, false
	}
}

// Outcome is the result of comparing two symbols in argument order.
type Outcome int8

const (
	Tie Outcome = iota
	FirstWins
	SecondWins
)

func (o Outcome) String() string {
	switch o {
	case FirstWins:
		return "first_wins"
	case SecondWins:
		return "second_wins"
	default:
		return "tie"
	}
}

// Beats compares a against b. Rock > Scissors > Paper > Rock.
func Beats(a, b Symbol) Outcome {
	if a == b {
		return Tie
	}
	switch {
	case a == Rock && b == Scissors,
		a == Paper && b == Rock,
		a == Scissors && b == Paper:
		return FirstWins
	default:
		return SecondWins
	}
}

// Result is a resolved round seen from the player's side. The zero value means pending.
type Result int8

const (
	ResultPending Result = iota
	ResultPlayerWins
	ResultBotWins
	ResultTie
)

// ResultOf maps Beats(player, bot) to a player-side result.
func ResultOf(player, bot Symbol) Result {
	switch Beats(player, bot) {
	case FirstWins:
		return ResultPlayerWins
	case SecondWins:
		return ResultBotWins
	default:
		return ResultTie
	}
}

func (r Result) String() string {
	switch r {
	case ResultPlayerWins:
		return "player"
	case ResultBotWins:
		return "bot"
	case ResultTie:
		return "tie"
	default:
		return "pending"
	}
}

type Difficulty string

const (
	Easy Difficulty = "easy"
	Hard Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "e", "쉬움", "이지":
		return Easy, true
	case "hard", "h", "어려움", "하드":
		return Hard, true
	default:
		return "", false
	}
}

// Score is the cumulative ledger of a player against the bot.
type Score struct {
	PlayerWins uint64
	BotWins    uint64
}

// Record returns the score after one resolved round. Ties leave it unchanged.
func (s Score) Record(r Result) Score {
	switch r {
	case ResultPlayerWins:
		s.PlayerWins++
	case ResultBotWins:
		s.BotWins++
	}
	return s
}
