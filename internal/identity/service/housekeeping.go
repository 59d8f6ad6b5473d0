package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/stubbl/identity/internal/identity/metrics"
	"github.com/stubbl/identity/internal/identity/store"
)

// HousekeepingService periodically deletes expired persisted grants so the
// collection does not grow without bound.
type HousekeepingService struct {
	Grants   store.PersistedGrants
	Logger   *slog.Logger
	Interval time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the worker. A non-positive interval means
// one hour.
func NewHousekeepingService(grants store.PersistedGrants, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Grants:   grants,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup removes every grant that has expired by now and returns how many
// were deleted.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	removed, err := s.Grants.RemoveExpired(ctx, s.Now().UTC())
	if err != nil {
		s.Logger.Error("failed to delete expired persisted grants", "error", err)
		return 0
	}

	metrics.HousekeepingGrantsRemoved.Add(float64(removed))
	s.Logger.Info("housekeeping cleanup completed", "grants_removed", removed)
	return removed
}
