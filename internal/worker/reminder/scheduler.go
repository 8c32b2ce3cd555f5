package reminder

import (
	"context"
	"log/slog"
	"time"
)

// DispatchRunner はリマインダーサイクルの実行インターフェース。
type DispatchRunner interface {
	// RunOnce は候補の取得と配信を1回実行する。
	RunOnce(ctx context.Context) error
}

// Scheduler はリマインダーディスパッチの定期実行を行う。
// 1分間隔のティッカーでディスパッチャを起動する。
type Scheduler struct {
	dispatcher DispatchRunner
	logger     *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(dispatcher DispatchRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リマインダースケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.dispatcher.RunOnce(ctx); err != nil {
		s.logger.Error("リマインダーサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リマインダースケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.dispatcher.RunOnce(ctx); err != nil {
				s.logger.Error("リマインダーサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
