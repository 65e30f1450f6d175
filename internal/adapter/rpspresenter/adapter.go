package rpspresenter

import (
	"errors"
	"strings"

	"github.com/park285/rpsminus-bot/internal/domain"
	corerps "github.com/park285/rpsminus-bot/internal/rps"
	"github.com/park285/rpsminus-bot/internal/score"
	svc "github.com/park285/rpsminus-bot/internal/service/rps"
	"github.com/park285/rpsminus-bot/pkg/rpsdto"
)

func ToRoundView(s svc.Snapshot) rpsdto.RoundView {
	return rpsdto.RoundView{
		SessionKey:   s.SessionKey,
		RoundID:      s.RoundID,
		RoundNumber:  s.RoundNumber,
		Difficulty:   string(s.Difficulty),
		Phase:        s.Phase.String(),
		Event:        s.Event.String(),
		PlayerFirst:  symbolName(s.PlayerFirst),
		PlayerSecond: symbolName(s.PlayerSecond),
		PlayerFinal:  symbolName(s.PlayerFinal),
		BotFirst:     symbolName(s.BotFirst),
		BotSecond:    symbolName(s.BotSecond),
		BotFinal:     symbolName(s.BotFinal),
		Result:       s.Result.String(),
		Remaining:    s.Remaining,
		Deadline:     s.Deadline,
		Forced:       s.Forced,
		Ended:        s.Ended,
		Score: rpsdto.ScoreView{
			PlayerWins: s.Score.PlayerWins,
			BotWins:    s.Score.BotWins,
			Volatile:   s.ScoreVolatile,
			Live:       !s.Ended,
		},
	}
}

func ToScoreView(r svc.ScoreReport) rpsdto.ScoreView {
	return rpsdto.ScoreView{
		PlayerWins: r.Score.PlayerWins,
		BotWins:    r.Score.BotWins,
		Volatile:   r.Volatile,
		Live:       r.Live,
	}
}

func symbolName(s domain.Symbol) string {
	if !s.Valid() {
		return ""
	}
	return strings.ToLower(s.String())
}

// ToDomainError maps service failures to codes the formatter understands.
func ToDomainError(err error) rpsdto.DomainError {
	var de rpsdto.DomainError
	switch {
	case err == nil:
		return rpsdto.DomainError{}
	case errors.As(err, &de):
		return de
	case errors.Is(err, svc.ErrSessionNotFound), errors.Is(err, svc.ErrSessionClosed):
		return rpsdto.DomainError{Code: "not_found", Message: err.Error()}
	case errors.Is(err, corerps.ErrInvalidChoice):
		return rpsdto.DomainError{Code: "invalid_choice", Message: err.Error()}
	case errors.Is(err, svc.ErrRoomNotAllowed):
		return rpsdto.DomainError{Code: "room_not_allowed", Message: err.Error()}
	case errors.Is(err, svc.ErrTooManySessions):
		return rpsdto.DomainError{Code: "too_many", Message: err.Error(), Retryable: true}
	case errors.Is(err, score.ErrPersistenceUnavailable):
		return rpsdto.DomainError{Code: "persistence", Message: err.Error(), Retryable: true}
	default:
		return rpsdto.DomainError{Code: "generic", Message: err.Error(), Retryable: true}
	}
}
