package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/innkeephq/innkeep/internal/ratelimit"
	"github.com/innkeephq/innkeep/internal/services"
)

// CleanupManager periodically deletes expired session rows and prunes stale
// rate-limit windows so neither grows without bound.
type CleanupManager struct {
	sessions *services.SessionService
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions *services.SessionService,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. Blocks until Stop or ctx cancel.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := cm.sessions.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to delete expired sessions", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("expired session cleanup completed", slog.Int64("rows_deleted", deleted))
	}

	// Windows older than twice the interval can never admit or reject again
	if pruned := cm.limiter.PruneStale(2 * cm.interval); pruned > 0 {
		cm.logger.Info("stale rate-limit windows pruned", slog.Int("windows", pruned))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
