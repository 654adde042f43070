package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loyalbridge/admin/internal/telemetry"
)

// DefaultPruneSchedule runs the janitor every ten minutes.
const DefaultPruneSchedule = "@every 10m"

// Janitor periodically prunes expired OTP challenges and old blacklist
// entries off the request path.
type Janitor struct {
	cron        *cron.Cron
	challenges  ChallengeStore
	revocations RevocationStore
	retention   time.Duration
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// NewJanitor schedules pruning with a cron spec such as "@every 10m".
func NewJanitor(schedule string, challenges ChallengeStore, revocations RevocationStore, retention time.Duration, metrics *telemetry.Metrics, logger *slog.Logger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if retention <= 0 {
		retention = DefaultBlacklistRetention
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	j := &Janitor{
		cron:        cron.New(),
		challenges:  challenges,
		revocations: revocations,
		retention:   retention,
		metrics:     metrics,
		logger:      logger,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule prune %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor started", "retention", j.retention.String())
}

// Stop halts the schedule and waits for a running prune to finish or ctx to
// be done.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce prunes both stores immediately.
func (j *Janitor) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if n, err := j.challenges.Prune(ctx); err != nil {
		j.logger.Error("prune otp challenges failed", "error", err)
	} else {
		j.metrics.Pruned("otp", n)
		if n > 0 {
			j.logger.Debug("pruned otp challenges", "count", n)
		}
	}

	if n, err := j.revocations.Prune(ctx, j.retention); err != nil {
		j.logger.Error("prune blacklist failed", "error", err)
	} else {
		j.metrics.Pruned("blacklist", n)
		if n > 0 {
			j.logger.Debug("pruned blacklist", "count", n)
		}
	}
}
