package irisfast

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("iris websocket not connected")

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// WebSocket reads Iris chat events and writes reply frames. It redials with
// backoff when the read loop or two consecutive pings fail.
type WebSocket struct {
	wsURL  string
	logger *zap.Logger

	connM sync.RWMutex
	conn  *websocket.Conn
	state WebSocketState
	// writeM serializes frames; a websocket.Conn allows one writer at a time.
	writeM sync.Mutex

	cbM      sync.RWMutex
	msgCbs   []MessageCallback
	stateCbs []StateCallback

	maxReconnectAttempts int
	pingInterval         time.Duration
	headerProvider       HeaderProvider

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type WSOption func(*WebSocket)

func WithWSHeaderProvider(h HeaderProvider) WSOption {
	return func(ws *WebSocket) { ws.headerProvider = h }
}

func WithPingInterval(d time.Duration) WSOption {
	return func(ws *WebSocket) {
		if d > 0 {
			ws.pingInterval = d
		}
	}
}

func WithWSLogger(l *zap.Logger) WSOption {
	return func(ws *WebSocket) {
		if l != nil {
			ws.logger = l
		}
	}
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, opts ...WSOption) *WebSocket {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	ws := &WebSocket{
		wsURL:                wsURL,
		logger:               zap.NewNop(),
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              rootCtx,
		rootCancel:           rootCancel,
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

func (ws *WebSocket) OnMessage(cb MessageCallback) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.msgCbs = append(ws.msgCbs, cb)
}

func (ws *WebSocket) OnStateChange(cb StateCallback) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.stateCbs = append(ws.stateCbs, cb)
}

func (ws *WebSocket) State() WebSocketState {
	ws.connM.RLock()
	defer ws.connM.RUnlock()
	return ws.state
}

func (ws *WebSocket) Connected() bool {
	ws.connM.RLock()
	defer ws.connM.RUnlock()
	return ws.conn != nil && ws.state == WSStateConnected
}

// Connect dials once. On failure a background redial is scheduled and the
// dial error is still returned.
func (ws *WebSocket) Connect(ctx context.Context) error {
	switch ws.State() {
	case WSStateConnected, WSStateConnecting:
		return nil
	}
	ws.setState(WSStateConnecting)

	conn, err := ws.dial(ctx)
	if err != nil {
		ws.setState(WSStateFailed)
		ws.scheduleReconnect()
		return err
	}
	ws.attach(conn)
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	return conn, err
}

func (ws *WebSocket) attach(conn *websocket.Conn) {
	ws.connM.Lock()
	ws.conn = conn
	ws.connM.Unlock()
	ws.setState(WSStateConnected)
	ws.logger.Info("iris_ws_connected", zap.String("url", ws.wsURL))

	ws.wg.Add(2)
	go ws.listen(conn)
	go ws.pingLoop(conn)
}

// WriteJSON sends one frame on the live connection.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.connM.RLock()
	conn, state := ws.conn, ws.state
	ws.connM.RUnlock()
	if conn == nil || state != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		var msg Message
		if err := wsjson.Read(ws.rootCtx, conn, &msg); err != nil {
			if ws.isStopping() {
				return
			}
			ws.logger.Warn("iris_ws_read_failed", zap.Error(err))
			ws.drop(conn, "reconnect")
			return
		}

		ws.cbM.RLock()
		callbacks := append([]MessageCallback(nil), ws.msgCbs...)
		ws.cbM.RUnlock()
		for _, cb := range callbacks {
			cb(&msg)
		}
	}
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ws.stopCh:
			return
		case <-ws.rootCtx.Done():
			return
		case <-t.C:
			if !ws.isCurrent(conn) {
				return
			}
			ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				ws.logger.Warn("iris_ws_ping_failed", zap.Error(err))
				ws.drop(conn, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still the live one and starts redialing.
func (ws *WebSocket) drop(conn *websocket.Conn, reason string) {
	ws.connM.Lock()
	if ws.conn != conn {
		ws.connM.Unlock()
		return
	}
	ws.conn = nil
	ws.connM.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, reason)
	if ws.isStopping() {
		return
	}
	ws.setState(WSStateDisconnected)
	ws.scheduleReconnect()
}

func (ws *WebSocket) isCurrent(conn *websocket.Conn) bool {
	ws.connM.RLock()
	defer ws.connM.RUnlock()
	return ws.conn == conn
}

func (ws *WebSocket) scheduleReconnect() {
	if ws.maxReconnectAttempts <= 0 || ws.isStopping() {
		return
	}
	ws.setState(WSStateReconnecting)

	go func() {
		for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
			select {
			case <-ws.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			conn, err := ws.dial(ws.rootCtx)
			if err != nil {
				ws.logger.Debug("iris_ws_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if ws.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			ws.attach(conn)
			return
		}
		ws.setState(WSStateFailed)
	}()
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.connM.Lock()
	ws.state = state
	ws.connM.Unlock()

	ws.cbM.RLock()
	callbacks := append([]StateCallback(nil), ws.stateCbs...)
	ws.cbM.RUnlock()
	for _, cb := range callbacks {
		cb(state)
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.stopCh) })

	ws.connM.Lock()
	conn := ws.conn
	ws.conn = nil
	ws.state = WSStateDisconnected
	ws.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	ws.rootCancel()

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headerProvider == nil {
		return hdr
	}
	for k, v := range ws.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
