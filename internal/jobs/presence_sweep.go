package jobs

import (
	"context"
	"time"

	"relay-chat/internal/observability"

	"go.uber.org/zap"
)

type PresenceSweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) int
	OnlineCount(ctx context.Context) (int64, error)
}

// PresenceSweepJob marks users offline whose last heartbeat is older than maxAge. It covers
// processes that died without running their disconnect handlers.
type PresenceSweepJob struct {
	presence PresenceSweeper
	maxAge   time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewPresenceSweepJob(presence PresenceSweeper, maxAge time.Duration, log *zap.Logger) *PresenceSweepJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceSweepJob{
		presence: presence,
		maxAge:   maxAge,
		timeout:  30 * time.Second,
		log:      log.Named("presence_sweep"),
	}
}

// Run implements cron.Job.
func (j *PresenceSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	swept := j.presence.Sweep(ctx, j.maxAge)
	if swept > 0 {
		observability.AddPresenceSwept(swept)
		j.log.Info("stale presence swept", zap.Int("users", swept))
	}

	online, err := j.presence.OnlineCount(ctx)
	if err != nil {
		j.log.Warn("online count failed", zap.Error(err))
		return
	}
	observability.SetPresenceOnline(online)
}
