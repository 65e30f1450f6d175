// irischeck probes the Iris endpoints the rps bot depends on: GET /config,
// the WebSocket handshake, and optionally one reply to a test room.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/park285/rpsminus-bot/internal/irisfast"
)

func main() {
	room := flag.String("room", "", "send a test reply to this room")
	watch := flag.Duration("watch", 10*time.Second, "how long to print incoming WS messages")
	flag.Parse()

	_ = godotenv.Load()
	baseURL := os.Getenv("IRIS_BASE_URL")
	wsURL := os.Getenv("IRIS_WS_URL")
	if baseURL == "" {
		log.Fatal("IRIS_BASE_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		for header, key := range map[string]string{
			"X-User-Id":    "X_USER_ID",
			"X-User-Email": "X_USER_EMAIL",
			"X-Session-Id": "X_SESSION_ID",
		} {
			if v := os.Getenv(key); v != "" {
				m[header] = v
			}
		}
		return m
	}

	client := irisfast.NewClient(baseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: bot=%s port=%d endpoint=%s", cfg.BotName, cfg.BotHTTPPort, cfg.WebEndpoint)
	}

	if *room != "" {
		if err := client.SendMessage(ctx, *room, "rps bot irischeck ✊✌️✋"); err != nil {
			log.Printf("/reply error: %v", err)
		} else {
			log.Printf("/reply ok: room=%s", *room)
		}
	}

	if wsURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}

	ws := irisfast.NewWebSocket(wsURL, 0, irisfast.WithWSHeaderProvider(headers))
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		from := msg.SenderName()
		if from == "" {
			from = "?"
		}
		fmt.Printf("WS msg room=%s from=%s user=%s text=%q\n", msg.Room, from, msg.UserID(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	t := time.NewTimer(*watch)
	<-t.C

	_ = ws.Close(context.Background())
}
