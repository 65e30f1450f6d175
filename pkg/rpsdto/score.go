package rpsdto

type ScoreView struct {
	PlayerWins uint64
	BotWins    uint64
	// Volatile means the counters live only in memory for this session.
	Volatile bool
	Live     bool
}

func (s ScoreView) Total() uint64 { return s.PlayerWins + s.BotWins }
