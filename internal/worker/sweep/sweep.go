// Package sweep は期限切れセッションの自動削除ジョブを提供する。
// 識別子の再利用時に古い行が残留しないよう、定期バッチで物理削除する。
// セッションの有効性判定は読み取り時のexpires_at比較で行われるため、
// このジョブが遅延しても認証の安全性には影響しない。
package sweep

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper は期限切れセッションの削除インターフェース。
// session.Managerの部分集合として定義する。
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Job は期限切れセッションの削除ジョブ。
// 冪等な削除処理であり、削除対象がない場合でもエラーにならない。
type Job struct {
	sweeper SessionSweeper
	logger  *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(sweeper SessionSweeper, logger *slog.Logger) *Job {
	return &Job{
		sweeper: sweeper,
		logger:  logger,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("セッション掃除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	j.logger.Info("セッション掃除ジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Scheduler は掃除ジョブの定期実行を行う。
type Scheduler struct {
	job    *Job
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(job *Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:    job,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("セッション掃除スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("掃除サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("セッション掃除スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.job.Run(ctx); err != nil {
				s.logger.Error("掃除サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
