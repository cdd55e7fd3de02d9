package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"pushsync/internal/daemon"
	"pushsync/internal/db"
	"pushsync/internal/ledger"
	"pushsync/internal/logger"
	"pushsync/internal/repository"
	"pushsync/internal/transport"
	"pushsync/internal/watcher"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [config]",
	Short: "Watch the local path and push every change to all targets",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	if err := logger.Init(debug, cfg.LogPath); err != nil {
		return err
	}

	targets, err := cfg.BuildTargets()
	if err != nil {
		return err
	}

	filter, err := cfg.BuildIgnoreFilter()
	if err != nil {
		return err
	}

	endpoints := make([]daemon.Endpoint, 0, len(targets))
	for _, t := range targets {
		conn, err := transport.New(t)
		if err != nil {
			return err
		}
		endpoints = append(endpoints, daemon.Endpoint{Target: t, Transport: conn})
	}

	w, err := watcher.New(cfg.LocalPath, watcher.NewQueue(), filter, cfg.ExitRequestFile)
	if err != nil {
		return err
	}

	if err := db.Init(cfg.DBPath); err != nil {
		return err
	}

	defer func() {
		_ = db.Close()
	}()

	history := repository.NewHistoryRepository()
	opts := daemon.Options{
		Concurrent:   cfg.AllowMultiThreadedUpload,
		PollInterval: cfg.PollInterval,
		RetryDelay:   cfg.RetryDelay,
		History:      history,
	}

	var changes daemon.ChangeLister
	if cfg.ChangeListPath != "" {
		l, err := ledger.Open(cfg.ChangeListPath)
		if err != nil {
			return err
		}

		defer func(l *ledger.Ledger) {
			_ = l.Close()
		}(l)

		opts.Ledger = l
		changes = l
	}

	scheduler := daemon.NewScheduler(w, endpoints, opts)

	srv := daemon.NewServer(scheduler, history, changes, cfg.DaemonPort)
	srv.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scheduler.StartAll(ctx); err != nil {
		return err
	}

	logger.Log.Info("pushsync started",
		zap.String("root", cfg.LocalPath),
		zap.Int("targets", len(endpoints)),
		zap.Int("port", cfg.DaemonPort))

	runErr := scheduler.Run(ctx)
	scheduler.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Log.Warn("failed to stop daemon server",
			zap.Error(err))
	}

	return runErr
}

func init() {
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.RunE = runDaemon
	rootCmd.AddCommand(watchCmd)
}
