// Package plansweep は期限切れ試用プランの自動降格ジョブを提供する。
// plan=trialかつtrial_ends_atが現在時刻以前のユーザーを一括でfreeに降格する。
package plansweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/yoyaku/internal/metrics"
	"github.com/hitoshi/yoyaku/internal/repository"
)

// Sweeper は期限切れ試用アカウントの降格ジョブ。
// 定期バッチとして設計されており、降格処理は冪等。
type Sweeper struct {
	userRepo  repository.UserRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(userRepo repository.UserRepository, collector metrics.MetricsCollector, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		userRepo:  userRepo,
		collector: collector,
		logger:    logger,
	}
}

// RunOnce は期限切れ試用ユーザーを検出し、単一の一括更新でfreeに降格する。
// 冪等: 対象がない場合は何もしない。trial_ends_atがNULLのユーザーは
// 期限切れとみなされず対象にならない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	ids, err := s.userRepo.ListExpiredTrialIDs(ctx, start)
	if err != nil {
		return fmt.Errorf("failed to list expired trials: %w", err)
	}

	if len(ids) == 0 {
		s.logger.Info("期限切れの試用アカウントはありません")
		return nil
	}

	demoted, err := s.userRepo.DemoteToFree(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to demote expired trials: %w", err)
	}

	s.collector.RecordTrialsDemoted(demoted)

	duration := time.Since(start)
	s.logger.Info("試用プランの降格処理が完了しました",
		slog.Int("expired_count", len(ids)),
		slog.Int64("demoted_count", demoted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでスイーパーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("プランスイーパーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("プランスイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("プランスイーパーを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("プランスイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
