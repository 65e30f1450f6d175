package irisfast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newInmemoryClient(t *testing.T, handler fasthttp.RequestHandler, opts ...Option) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	hc := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return NewClient("http://iris.test/", append([]Option{WithHTTPClient(hc)}, opts...)...)
}

func TestSendMessagePostsReply(t *testing.T) {
	var got ReplyRequest
	var user string
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/reply" || !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		user = string(ctx.Request.Header.Peek("X-User-Id"))
		_ = json.Unmarshal(ctx.PostBody(), &got)
	}, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-User-Id": "bot", "X-Empty": " "}
	}))

	if err := c.SendMessage(context.Background(), "room-1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got != (ReplyRequest{Type: "text", Room: "room-1", Data: "hello"}) {
		t.Fatalf("reply body = %+v", got)
	}
	if user != "bot" {
		t.Fatalf("header not forwarded: %q", user)
	}
}

func TestSendMessageIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})
	err := c.SendImage(context.Background(), "room", "aGVsbG8=")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("reply sent %d times", calls.Load())
	}
}

func TestGetConfigRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"bot_name":"rps","bot_http_port":3000}`)
	}, WithRetry(3))

	cfg, err := c.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.BotName != "rps" || cfg.BotHTTPPort != 3000 || calls.Load() != 3 {
		t.Fatalf("cfg=%+v calls=%d", cfg, calls.Load())
	}
}

func TestGetConfigStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	})
	if _, err := c.GetConfig(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx retried: %d calls", calls.Load())
	}
}

func TestMessageUserID(t *testing.T) {
	name := " alice "
	m := &Message{Sender: &name}
	if m.UserID() != "alice" || m.SenderName() != "alice" {
		t.Fatalf("sender fallback failed")
	}
	m.JSON = &MessageJSON{UserID: "42"}
	if m.UserID() != "42" {
		t.Fatalf("json user id not preferred")
	}
	var nilMsg *Message
	if nilMsg.UserID() != "" {
		t.Fatalf("nil message")
	}
}
