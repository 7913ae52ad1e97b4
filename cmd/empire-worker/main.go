package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corpempire/internal/api"
	"corpempire/internal/bank"
	"corpempire/internal/config"
	"corpempire/internal/db"
	"corpempire/internal/economy"
	"corpempire/internal/ledger"
	"corpempire/internal/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	store := ledger.NewPostgresStore(pool, logger)

	var notifier economy.Notifier = notify.NewLog(logger)
	if cfg.DiscordToken != "" {
		discord, session, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordGuildID, logger)
		if err != nil {
			logger.Error("discord connect failed", "err", err)
			os.Exit(1)
		}
		defer session.Close()
		notifier = discord
	}

	scheduler, err := economy.NewScheduler(economy.Options{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Policy:   cfg.Policy(),
		Random:   economy.NewRandomSource(cfg.RandomSeed),
	})
	if err != nil {
		logger.Error("scheduler init failed", "err", err)
		os.Exit(1)
	}

	if cfg.RunOnce {
		summary, err := scheduler.TriggerNow(ctx)
		if errors.Is(err, economy.ErrAlreadyCompleted) {
			logger.Info("worker run-once skipped", "reason", "period already completed")
			return
		}
		if err != nil {
			logger.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "run_id", summary.RunID, "period", summary.Period)
		return
	}

	originator := bank.NewOriginator(store, cfg.MaxActiveLoans, logger)
	server := api.New(logger, cfg.AdminToken, scheduler, store, originator)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := scheduler.Start(ctx, cfg.CycleInterval); err != nil {
		logger.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("empire worker listening", "addr", cfg.Addr, "cycle_interval", cfg.CycleInterval.String())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		stop()
		scheduler.Wait()
		os.Exit(1)
	}
	scheduler.Wait()
	logger.Info("worker shutdown")
}
