package rpsdto

import "time"

// RoundView is a session snapshot flattened for formatting. Symbols are the
// lowercase names ("rock", "paper", "scissors"); unknown ones are empty.
type RoundView struct {
	SessionKey  string
	RoundID     string
	RoundNumber int
	Difficulty  string
	Phase       string
	Event       string

	PlayerFirst  string
	PlayerSecond string
	PlayerFinal  string
	BotFirst     string
	BotSecond    string
	BotFinal     string

	// Result is "player", "bot", "tie" or "pending".
	Result    string
	Remaining time.Duration
	Deadline  time.Time
	Forced    bool
	Ended     bool

	Score ScoreView
	// Image is the PNG result card, set only for resolved rounds.
	Image []byte
}

func (v RoundView) Resolved() bool { return v.Phase == "resolved" }
