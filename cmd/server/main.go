package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"carioca/internal/config"
	"carioca/internal/events"
	"carioca/internal/game"
	"carioca/internal/game/carioca"
	"carioca/internal/server"
	"carioca/internal/session"
	"carioca/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := cfg.Logger()
	log := logrus.NewEntry(logger)

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(carioca.Game{})

	var pub events.Publisher = events.NewLogPublisher(log.WithField("component", "events"))
	if cfg.RedisURL != "" {
		rp, err := events.NewRedisPublisher(cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			log.WithError(err).Fatal("redis publisher")
		}
		pub = events.Multi{pub, rp}
		log.WithField("channel", cfg.RedisChannel).Info("publishing match events to redis")
	}
	defer pub.Close()

	mgr := session.NewManager(registry, store,
		session.WithLogger(log.WithField("component", "session")),
		session.WithPublisher(pub),
		session.WithBotDelay(cfg.BotDelay),
	)
	if err := mgr.Restore(); err != nil {
		log.WithError(err).Warn("restore sessions")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.CleanupLoop(ctx, cfg.CleanupInterval, cfg.SessionMaxAge)

	var webFS fs.FS
	if st, err := os.Stat(cfg.WebDir); err == nil && st.IsDir() {
		webFS = os.DirFS(cfg.WebDir)
	} else {
		log.WithField("dir", cfg.WebDir).Warn("no static files to serve")
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(ctx, registry, mgr, webFS, log.WithField("component", "http")),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", cfg.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
}
