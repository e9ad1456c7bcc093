package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"effects-server/internal/config"
	"effects-server/internal/journal"
	"effects-server/internal/logging"
	"effects-server/internal/match"
	"effects-server/internal/replication"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()
	writer := journal.NewWriter(db, log.Named("journal"), 2*time.Second)
	defer writer.Stop()

	auth, err := replication.NewAuth(cfg.JWTSecret)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mg := match.NewManager(ctx, log, match.Options{
		TickRate:       cfg.TickRate,
		BroadcastEvery: cfg.BroadcastEvery(),
		WaveInterval:   cfg.WaveInterval,
		Seed:           cfg.Seed,
		PoolCapacity:   cfg.PoolCapacity,
		Heroes:         cfg.Heroes,
		Autopilot:      cfg.Autopilot,
	}, db, writer)
	arena, err := mg.Create("arena")
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	match.NewAPI(mg, db, log).SetupRoutes(mux)
	replication.NewServer(auth, mg, log).SetupRoutes(mux)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			zap.String("addr", cfg.Addr),
			zap.String("journal", cfg.JournalPath),
			zap.String("arena", arena.ID.String()),
			zap.Int("tick_rate", cfg.TickRate),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		return errors.Join(err, mg.Shutdown())
	})
	return g.Wait()
}
