// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// セッションの有効性判定は読み取り時のexpires_at比較で行われるため、
// このジョブは正しさではなくストアの肥大化防止を担う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionReaper は期限切れセッションの削除に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionReaper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Metrics は削除件数の記録インターフェース。nilの場合は記録しない。
type Metrics interface {
	RecordSessionsReaped(count int64)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions SessionReaper
	logger   *slog.Logger
	metrics  Metrics
	Interval time.Duration // 実行間隔（デフォルト: 1分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionReaper, logger *slog.Logger, metrics Metrics) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
		Interval: 1 * time.Minute,
	}
}

// RunOnce は期限切れセッションを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsReaped(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Run は定期的にRunOnceを実行するループ。
// コンテキストのキャンセルで停止する。1回の失敗ではループを止めない
// （ストアの一時的な障害は次回の実行で回復する）。
func (j *CleanupJob) Run(ctx context.Context) error {
	j.logger.Info("セッションクリーンアップワーカーを開始します",
		slog.String("interval", j.Interval.String()),
	)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	// 起動直後に1回実行する
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Warn("初回クリーンアップに失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップワーカーを停止します")
			return ctx.Err()
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Warn("クリーンアップに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
