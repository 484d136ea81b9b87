// Package cleanup は期限切れトークンの削除ジョブを提供する。
// 検証時の遅延削除で消えずに残った記録（一度も再提示されなかったトークン）を
// 保持期間の経過後にまとめて削除する。サーバープロセスとは別に、単発または
// Schedulerによる定期実行で動かす。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は期限切れトークンを残しておく日数の既定値。
const DefaultRetentionDays = 7

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TokenCleanupJob は期限切れから保持期間を過ぎたトークン記録を削除する。
// 冪等であり、何度実行しても結果は変わらない。
type TokenCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewTokenCleanupJob は新しいTokenCleanupJobを生成する。
func NewTokenCleanupJob(db Executor, logger *slog.Logger) *TokenCleanupJob {
	return &TokenCleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run はexpires_atがRetentionDays日より前のトークンを削除し、削除件数を返す。
// 有効期限内のトークンには触れない。
func (j *TokenCleanupJob) Run(ctx context.Context) (int64, error) {
	if j.RetentionDays < 0 {
		return 0, fmt.Errorf("retention days must not be negative: %d", j.RetentionDays)
	}

	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at < now() - $1::interval`,
		interval,
	)
	if err != nil {
		j.logger.Error("token cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted token count: %w", err)
	}

	j.logger.Info("token cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}
