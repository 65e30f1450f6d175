package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/rpsminus-bot/internal/adapter/rpspresenter"
	"github.com/park285/rpsminus-bot/internal/domain"
	"github.com/park285/rpsminus-bot/internal/irisfast"
	svc "github.com/park285/rpsminus-bot/internal/service/rps"
)

// Service is the part of *rps.Manager the router drives.
type Service interface {
	Start(ctx context.Context, meta svc.SessionMeta, difficulty domain.Difficulty) (svc.Snapshot, error)
	Play(ctx context.Context, meta svc.SessionMeta, sym domain.Symbol) (svc.Snapshot, error)
	Status(ctx context.Context, meta svc.SessionMeta) (svc.Snapshot, error)
	Stop(ctx context.Context, meta svc.SessionMeta) (svc.Snapshot, error)
	Score(ctx context.Context, meta svc.SessionMeta) (svc.ScoreReport, error)
	ResetScore(ctx context.Context, meta svc.SessionMeta) error
}

// Keywords that address the game after the bot prefix.
var keywords = []string{"rps", "가위바위보"}

// Router turns chat messages into manager calls and replies.
type Router struct {
	prefix    string
	service   Service
	presenter *rpspresenter.Presenter
	formatter *rpspresenter.Formatter
	logger    *zap.Logger
}

func NewRouter(prefix string, service Service, presenter *rpspresenter.Presenter, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		prefix:    strings.TrimSpace(prefix),
		service:   service,
		presenter: presenter,
		formatter: presenter.Formatter(),
		logger:    logger,
	}
}

// Handle processes one message. It reports false when the message is not a game command.
func (r *Router) Handle(ctx context.Context, msg *irisfast.Message) bool {
	args, ok := r.parse(msg)
	if !ok {
		return false
	}
	meta := MetaFor(msg)
	if len(args) == 0 {
		r.reply(ctx, meta.Room, r.formatter.Help(), nil)
		return true
	}

	sub := strings.ToLower(args[0])
	r.logger.Debug("rps_command",
		zap.String("room", meta.Room),
		zap.String("sender", meta.Sender),
		zap.String("sub", sub),
	)

	switch sub {
	case "시작", "start":
		r.start(ctx, meta, args[1:])
	case "현황", "status":
		r.status(ctx, meta)
	case "전적", "score":
		report, err := r.service.Score(ctx, meta)
		if err != nil {
			r.fail(ctx, meta, err)
			return true
		}
		r.reply(ctx, meta.Room, r.formatter.Score(rpspresenter.ToScoreView(report)), nil)
	case "초기화", "reset":
		if err := r.service.ResetScore(ctx, meta); err != nil {
			r.fail(ctx, meta, err)
			return true
		}
		r.reply(ctx, meta.Room, r.formatter.Reset(), nil)
	case "종료", "stop":
		snap, err := r.service.Stop(ctx, meta)
		if err != nil {
			r.fail(ctx, meta, err)
			return true
		}
		r.reply(ctx, meta.Room, r.formatter.Stopped(rpspresenter.ToRoundView(snap)), nil)
	case "도움", "help":
		r.reply(ctx, meta.Room, r.formatter.Help(), nil)
	default:
		sym, ok := domain.ParseSymbol(sub)
		if !ok {
			r.reply(ctx, meta.Room, r.formatter.UnknownInput(), nil)
			return true
		}
		// accepted inputs are pushed by the session listener
		if _, err := r.service.Play(ctx, meta, sym); err != nil {
			r.fail(ctx, meta, err)
		}
	}
	return true
}

func (r *Router) start(ctx context.Context, meta svc.SessionMeta, args []string) {
	var difficulty domain.Difficulty
	if len(args) > 0 {
		d, ok := domain.ParseDifficulty(args[0])
		if !ok {
			r.reply(ctx, meta.Room, r.formatter.UnknownInput(), nil)
			return
		}
		difficulty = d
	}

	snap, err := r.service.Start(ctx, meta, difficulty)
	resumed := false
	if errors.Is(err, svc.ErrSessionInProgress) && snap.RoundID != "" {
		resumed, err = true, nil
	}
	if err != nil {
		r.fail(ctx, meta, err)
		return
	}
	view := rpspresenter.ToRoundView(snap)
	r.reply(ctx, meta.Room, r.formatter.Start(view, resumed), r.presenter.Card(ctx, view))
}

// status shows the open phase, or the result card while the round is held.

func (r *Router) status(ctx context.Context, meta svc.SessionMeta) {
	snap, err := r.service.Status(ctx, meta)
	if err != nil {
		r.fail(ctx, meta, err)
		return
	}
	view := rpspresenter.ToRoundView(snap)
	r.reply(ctx, meta.Room, r.formatter.Status(view), r.presenter.Card(ctx, view))
}

func (r *Router) fail(ctx context.Context, meta svc.SessionMeta, err error) {
	if rpspresenter.ToDomainError(err).Code == "generic" {
		r.logger.Warn("rps_command_failed",
			zap.String("room", meta.Room),
			zap.String("sender", meta.Sender),
			zap.Error(err),
		)
	}
	r.reply(ctx, meta.Room, r.formatter.Error(err), nil)
}

func (r *Router) reply(ctx context.Context, room, text string, image []byte) {
	if err := r.presenter.Reply(ctx, room, text, image); err != nil {
		r.logger.Warn("rps_reply_failed", zap.String("room", room), zap.Error(err))
	}
}

// parse strips the prefix and the game keyword, returning the remaining fields.
func (r *Router) parse(msg *irisfast.Message) ([]string, bool) {
	if msg == nil || r.prefix == "" {
		return nil, false
	}
	text := strings.TrimSpace(msg.Msg)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, r.prefix))
	if len(fields) == 0 {
		return nil, false
	}
	head := strings.ToLower(fields[0])
	for _, kw := range keywords {
		if head == kw {
			return fields[1:], true
		}
	}
	return nil, false
}

// MetaFor keys a message to its room and the sender's user id.
func MetaFor(msg *irisfast.Message) svc.SessionMeta {
	room := strings.TrimSpace(msg.Room)
	user := msg.UserID()
	if user == "" {
		user = "player"
	}
	return svc.SessionMeta{
		SessionID: fmt.Sprintf("%s:%s", room, user),
		Room:      room,
		Sender:    user,
	}
}
