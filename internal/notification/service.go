// Package notification はプッシュ購読の登録・検証とウェルカム通知を提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/yoyaku/internal/model"
	"github.com/hitoshi/yoyaku/internal/notifier"
	"github.com/hitoshi/yoyaku/internal/repository"
)

// EndpointValidator はWeb Pushエンドポイントの検証インターフェース。
// securityパッケージのエンドポイントガードが実装する。
type EndpointValidator interface {
	ValidateEndpoint(rawURL string) error
}

// NativePusher はExpoプッシュ通知の送信インターフェース。
type NativePusher interface {
	SendNativePush(ctx context.Context, token, title, body string, data map[string]string) (notifier.SendOutcome, error)
}

// WebPusher はWeb Push通知の送信インターフェース。
type WebPusher interface {
	SendWebPush(ctx context.Context, sub *model.WebPushSubscription, title, message string) (notifier.SendOutcome, error)
}

// Service はプッシュ購読に関するビジネスロジックを提供する。
type Service struct {
	userRepo       repository.UserRepository
	guard          EndpointValidator
	nativePush     NativePusher
	webPush        WebPusher
	vapidPublicKey string
	logger         *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	guard EndpointValidator,
	nativePush NativePusher,
	webPush WebPusher,
	vapidPublicKey string,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:       userRepo,
		guard:          guard,
		nativePush:     nativePush,
		webPush:        webPush,
		vapidPublicKey: vapidPublicKey,
		logger:         logger,
	}
}

// Subscribe は購読値を検証して保存する（単一スロット、後勝ち）。
// Web Pushエンドポイントは保存前にSSRF検証を行う。
// 保存後、ウェルカム通知をベストエフォートで送信する。
func (s *Service) Subscribe(ctx context.Context, userID, raw string) error {
	raw = strings.TrimSpace(raw)

	target := model.ParsePushTarget(raw)

	switch target.Kind {
	case model.PushTargetNative:
		// Expoトークンは外部URLを含まないため追加検証なし
	case model.PushTargetWeb:
		if err := s.guard.ValidateEndpoint(target.Web.Endpoint); err != nil {
			s.logger.Warn("購読エンドポイントの検証に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return model.NewEndpointBlockedError()
		}
	default:
		return model.NewInvalidSubscriptionError()
	}

	if err := s.userRepo.SetPushSubscription(ctx, userID, raw); err != nil {
		return fmt.Errorf("failed to store push subscription: %w", err)
	}

	s.logger.Info("プッシュ購読を登録しました",
		slog.String("user_id", userID),
		slog.String("kind", string(target.Kind)),
	)

	// ウェルカム通知はベストエフォート。失敗しても購読登録は成功扱い
	s.sendWelcome(ctx, userID, target)

	return nil
}

// VAPIDPublicKey はブラウザの購読時に使用する公開鍵を返す。
func (s *Service) VAPIDPublicKey() string {
	return s.vapidPublicKey
}

// sendWelcome は登録直後のチャネルでウェルカム通知を送信する。
func (s *Service) sendWelcome(ctx context.Context, userID string, target model.PushTarget) {
	const (
		title   = "購読が完了しました"
		message = "これから予約のリマインダーをお届けします。"
	)

	var (
		outcome notifier.SendOutcome
		err     error
	)

	switch target.Kind {
	case model.PushTargetNative:
		outcome, err = s.nativePush.SendNativePush(ctx, target.NativeToken, title, message, nil)
	case model.PushTargetWeb:
		outcome, err = s.webPush.SendWebPush(ctx, target.Web, title, message)
	default:
		return
	}

	if err != nil {
		s.logger.Warn("ウェルカム通知の送信に失敗しました",
			slog.String("user_id", userID),
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
}
