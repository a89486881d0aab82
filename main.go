package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arena-server/internal/logger"
	"arena-server/internal/world"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logrus.WithError(err).Fatal("server failed")
	}
}

func run(args []string) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	opts, err := world.LoadOptions(cfg.WorldFile)
	if err != nil {
		return err
	}
	game, err := NewGame(opts, cfg.Seed, log)
	if err != nil {
		return err
	}
	hub := NewHub(game.Room(), log.WithField("component", "hub"), cfg.Limits())
	mux := SetupRoutes(hub, cfg.ClientDir, cfg.PublicURL)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error {
		game.Start()
		<-ctx.Done()
		game.Stop()
		return nil
	})
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": cfg.Addr, "client": cfg.ClientDir}).Info("server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
