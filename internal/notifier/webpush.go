package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/hitoshi/yoyaku/internal/model"
)

// WebPushConfig はVAPID署名に必要な設定を保持する。
type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string // mailto: または https: で始まる連絡先
}

// WebPushSender はVAPID署名付きWeb Pushを送信する。
// エンドポイントはユーザー（ブラウザ）由来の任意URLであるため、
// SSRF防止付きHTTPクライアントを注入して使用する。
type WebPushSender struct {
	config     WebPushConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebPushSender はWebPushSenderを生成する。
// httpClientがnilの場合はhttp.DefaultClientを使用する。
func NewWebPushSender(config WebPushConfig, httpClient *http.Client, logger *slog.Logger) *WebPushSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebPushSender{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// webPushPayload はService Workerが受け取る通知ペイロード。
type webPushPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// SendWebPush は指定のWeb Push購読に通知を送信し、結果を分類して返す。
// 404/410（購読抹消）は恒久的失敗、その他のエラーは一時的失敗。
func (s *WebPushSender) SendWebPush(ctx context.Context, sub *model.WebPushSubscription, title, message string) (SendOutcome, error) {
	payload, err := json.Marshal(webPushPayload{Title: title, Message: message})
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("failed to marshal web push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.config.Subject,
		VAPIDPublicKey:  s.config.VAPIDPublicKey,
		VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("web push request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	outcome := ClassifyPushStatus(resp.StatusCode)
	switch outcome {
	case OutcomeDelivered:
		return OutcomeDelivered, nil
	case OutcomePermanentFailure:
		s.logger.Info("Web Push購読が抹消されています",
			slog.Int("http_status", resp.StatusCode),
		)
		return OutcomePermanentFailure, fmt.Errorf("web push endpoint gone: status %d", resp.StatusCode)
	default:
		return OutcomeTransientFailure, fmt.Errorf("web push endpoint returned status %d", resp.StatusCode)
	}
}
