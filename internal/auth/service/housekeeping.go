package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/lockboxhq/grantstore/internal/auth/store"
	"github.com/lockboxhq/grantstore/pkg/slogx"
)

// HousekeepingService periodically purges authorizations whose every
// token slot has expired, keeping the oauth2_authorizations table from
// growing without bound. Records still anchored by a live token, a
// refresh token with no expiry, or no tokens at all are left alone.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut
// it down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker, blocking until any in-progress purge has
// finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	// The worker owns its context; the logger rides along so cleanup and
	// anything below it log through the same instance.
	ctx := slogx.WithContext(context.Background(), s.Logger)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.cleanup(ctx)
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup(ctx context.Context) {
	logger := slogx.FromContext(ctx)

	deleted, err := s.Store.Authorizations().DeleteExpired(ctx, time.Now())
	if err != nil {
		logger.Error("failed to delete expired authorizations", "error", err)
		return
	}

	logger.Info("housekeeping cleanup completed", "deleted_authorizations", deleted)
}
