package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Runner は1回分の削除を実行するインターフェース。
// *TokenCleanupJob が満たす。
type Runner interface {
	Run(ctx context.Context) (int64, error)
}

// Scheduler はRunnerを一定間隔で実行する。
type Scheduler struct {
	job      Runner
	logger   *slog.Logger
	interval time.Duration
}

// NewScheduler はSchedulerを生成する。intervalは正でなければならない。
func NewScheduler(job Runner, logger *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		job:      job,
		logger:   logger,
		interval: interval,
	}
}

// Start は起動直後に1回実行し、その後interval毎に実行する。
// コンテキストがキャンセルされるまでブロックする。
// 1回の失敗はログに残して次の周期で再試行する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("token cleanup scheduler started",
		slog.Duration("interval", s.interval),
	)

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("token cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.job.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled token cleanup failed",
			slog.String("error", err.Error()),
		)
	}
}
