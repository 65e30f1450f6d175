package rpspresenter

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/rpsminus-bot/internal/irisfast"
	svc "github.com/park285/rpsminus-bot/internal/service/rps"
	"github.com/park285/rpsminus-bot/pkg/rpsdto"
)

const (
	defaultQueueSize = 256
	sendTimeout      = 5 * time.Second
	renderTimeout    = 2 * time.Second
)

type pushed struct {
	room string
	view rpsdto.RoundView
}

// Presenter delivers replies and pushed round updates to chat rooms.
// Pushed updates go through one queue so a room sees them in order.
type Presenter struct {
	egress    irisfast.Egress
	formatter *Formatter
	renderer  *Renderer
	logger    *zap.Logger
	queue     chan pushed
}

// NewPresenter wires delivery. A nil renderer disables result cards.
func NewPresenter(egress irisfast.Egress, formatter *Formatter, renderer *Renderer, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{
		egress:    egress,
		formatter: formatter,
		renderer:  renderer,
		logger:    logger,
		queue:     make(chan pushed, defaultQueueSize),
	}
}

func (p *Presenter) Formatter() *Formatter { return p.formatter }

// Reply sends text and an optional PNG right away.
func (p *Presenter) Reply(ctx context.Context, room, message string, image []byte) error {
	if p == nil || p.egress == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if strings.TrimSpace(message) != "" {
		if err := p.egress.SendText(ctx, room, message); err != nil {
			return err
		}
	}
	if len(image) > 0 {
		if err := p.egress.SendImage(ctx, room, base64.StdEncoding.EncodeToString(image)); err != nil {
			return err
		}
	}
	return nil
}

// Card renders the result card for a resolved round, or nil.
func (p *Presenter) Card(ctx context.Context, view rpsdto.RoundView) []byte {
	if p.renderer == nil || !view.Resolved() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()
	img, err := p.renderer.RenderPNG(ctx, view)
	if err != nil {
		p.logger.Warn("rps_render_failed", zap.String("round_id", view.RoundID), zap.Error(err))
		return nil
	}
	return img
}

// ListenerFor is a session listener that queues updates for meta.Room.
// It never blocks: updates are dropped when the queue is full.
func (p *Presenter) ListenerFor(meta svc.SessionMeta) svc.Listener {
	room := meta.Room
	return func(s svc.Snapshot) {
		item := pushed{room: room, view: ToRoundView(s)}
		select {
		case p.queue <- item:
		default:
			p.logger.Warn("rps_push_dropped",
				zap.String("room", room),
				zap.String("round_id", item.view.RoundID),
				zap.String("event", item.view.Event),
			)
		}
	}
}

// Run drains pushed updates until ctx is done.
func (p *Presenter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			p.deliver(ctx, item)
		}
	}
}

func (p *Presenter) deliver(ctx context.Context, item pushed) {
	text := p.formatter.Event(item.view)
	if text == "" {
		return
	}
	var image []byte
	if item.view.Event == "resolved" {
		image = p.Card(ctx, item.view)
	}
	if err := p.Reply(ctx, item.room, text, image); err != nil {
		p.logger.Warn("rps_push_failed",
			zap.String("room", item.room),
			zap.String("event", item.view.Event),
			zap.Error(err),
		)
	}
}
