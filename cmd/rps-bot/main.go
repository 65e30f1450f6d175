package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/rpsminus-bot/internal/adapter/rpspresenter"
	"github.com/park285/rpsminus-bot/internal/command"
	appcfg "github.com/park285/rpsminus-bot/internal/config"
	"github.com/park285/rpsminus-bot/internal/irisfast"
	"github.com/park285/rpsminus-bot/internal/metrics"
	"github.com/park285/rpsminus-bot/internal/msgcat"
	"github.com/park285/rpsminus-bot/internal/obslog"
	"github.com/park285/rpsminus-bot/internal/rpsbuilder"
	svcrps "github.com/park285/rpsminus-bot/internal/service/rps"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5,
		irisfast.WithWSHeaderProvider(headers),
		irisfast.WithWSLogger(logger),
	)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("iris_ws_state", zap.String("state", state.String()))
	})
	egress := irisfast.NewEgress(cfg.IrisTransport, cfg.IrisWSDryRun, client, ws, logger)

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}
	formatter := rpspresenter.NewFormatter(rpspresenter.StaticPrefix(cfg.BotPrefix), catalog, cfg.Timings())
	var renderer *rpspresenter.Renderer
	if cfg.RenderImages {
		renderer = rpspresenter.NewRenderer()
	}
	presenter := rpspresenter.NewPresenter(egress, formatter, renderer, logger)

	deps, err := rpsbuilder.New(cfg, logger, svcrps.WithListenerFactory(presenter.ListenerFor))
	if err != nil {
		logger.Fatal("rps init error", zap.Error(err))
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go presenter.Run(rootCtx)

	router := command.NewRouter(cfg.BotPrefix, deps.Manager, presenter, logger)
	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		// keep the read loop free
		go router.Handle(rootCtx, msg)
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	cctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("ws connect error", zap.Error(err))
	}
	cancel()

	if irisCfg, err := client.GetConfig(rootCtx); err != nil {
		logger.Warn("iris config unavailable", zap.Error(err))
	} else {
		logger.Info("iris config", zap.String("bot_name", irisCfg.BotName), zap.Int("bot_http_port", irisCfg.BotHTTPPort))
	}
	logger.Info("rps bot ready",
		zap.String("transport", cfg.IrisTransport),
		zap.String("ledger", deps.Backend),
		zap.Bool("render_images", renderer != nil),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	_ = ws.Close(shutdownCtx)
	if err := deps.Close(); err != nil {
		logger.Warn("ledger close error", zap.Error(err))
	}
	stop()
}
