package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
)

// UserLister returns every user that has at least one mirrored wallet.
type UserLister interface {
	ListUsers(ctx context.Context) ([]string, error)
}

// WalletSyncWorker periodically reconciles the wallet mirror of every known user
type WalletSyncWorker struct {
	logger *slog.Logger
	syncer ports.WalletSyncer
	users  UserLister

	// How often to run a full sweep
	interval time.Duration

	// Upper bound on passes running at the same time
	maxConcurrent int
}

// NewWalletSyncWorker creates a new wallet sync worker
func NewWalletSyncWorker(
	logger *slog.Logger,
	syncer ports.WalletSyncer,
	users UserLister,
	interval time.Duration,
	maxConcurrent int,
) *WalletSyncWorker {
	if maxConcurrent <= 0 {
		maxConcurrent = ports.MaxConcurrentSyncs
	}
	if interval <= 0 {
		interval = ports.DefaultSyncInterval
	}

	return &WalletSyncWorker{
		logger:        logger,
		syncer:        syncer,
		users:         users,
		interval:      interval,
		maxConcurrent: maxConcurrent,
	}
}

// Start schedules the sweep and blocks until ctx is cancelled
func (w *WalletSyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting wallet sync worker",
		"interval", w.interval.String(),
		"max_concurrent", w.maxConcurrent)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Wallet sync sweep failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("wallet-sync"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule wallet sync: %w", err)
	}

	scheduler.Start()
	<-ctx.Done()

	if err = scheduler.Shutdown(); err != nil {
		w.logger.Error("Wallet sync scheduler shutdown failed", "error", err)
	}
	w.logger.Info("Wallet sync worker stopped")
	return nil
}

// SweepResult counts per-user pass results of one sweep.
type SweepResult struct {
	Users   int
	Changed int
	Skipped int
	Failed  int
}

// RunOnce reconciles every known user once. A failing user does not stop the sweep.
func (w *WalletSyncWorker) RunOnce(ctx context.Context) (SweepResult, error) {
	users, err := w.users.ListUsers(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list users: %w", err)
	}

	var changed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.maxConcurrent)

	for _, userID := range users {
		g.Go(func() error {
			report, err := w.syncer.SyncNow(gctx, userID)
			switch {
			case errors.Is(err, entities.ErrBusy) || report.Coalesced:
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				w.logger.Warn("Wallet sync failed", "user_id", userID, "error", err)
			case report.Changed():
				changed.Add(1)
			}
			return nil
		})
	}

	// Tasks never return errors.
	_ = g.Wait()

	result := SweepResult{
		Users:   len(users),
		Changed: int(changed.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}

	if result.Changed > 0 || result.Failed > 0 {
		w.logger.Info("Wallet sync sweep finished",
			"users", result.Users, "changed", result.Changed, "skipped", result.Skipped, "failed", result.Failed)
	} else {
		w.logger.Debug("Wallet sync sweep finished, nothing changed", "users", result.Users)
	}

	return result, nil
}
