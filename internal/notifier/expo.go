package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// defaultExpoEndpoint はExpoプッシュ送信APIのエンドポイント。
	defaultExpoEndpoint = "https://exp.host/--/api/v2/push/send"
)

// expoErrorDeviceNotRegistered はExpoがトークン失効時に返すエラーコード。
// このコードを受けた購読は二度と配信できないため恒久的失敗として扱う。
const expoErrorDeviceNotRegistered = "DeviceNotRegistered"

// ExpoClient はExpoプッシュ通知APIのクライアント。
type ExpoClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewExpoClient はExpoClientの新しいインスタンスを生成する。
func NewExpoClient(httpClient *http.Client, logger *slog.Logger) *ExpoClient {
	return &ExpoClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   defaultExpoEndpoint,
	}
}

// expoPushMessage はExpo送信APIのリクエストボディ1件分。
type expoPushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// expoPushResponse はExpo送信APIのレスポンス。
// メッセージ配列で送信するとdataも同じ順の配列で返る。
type expoPushResponse struct {
	Data []expoPushTicket `json:"data"`
}

// expoPushTicket は1メッセージ分の受付結果。
type expoPushTicket struct {
	Status  string `json:"status"` // "ok" | "error"
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// SendNativePush は指定のExpoトークンにプッシュ通知を1件送信し、結果を分類して返す。
// DeviceNotRegisteredは恒久的失敗、HTTP 429/5xxとネットワークエラーは一時的失敗。
// 戻り値のerrorは失敗の詳細で、OutcomeDelivered以外のときに非nilとなる。
func (c *ExpoClient) SendNativePush(ctx context.Context, token, title, body string, data map[string]string) (SendOutcome, error) {
	payload, err := json.Marshal([]expoPushMessage{{
		To:    token,
		Title: title,
		Body:  body,
		Data:  data,
		Sound: "default",
	}})
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("failed to marshal expo push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("failed to create expo push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("expo push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ExpoプッシュAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return OutcomeTransientFailure, fmt.Errorf("expo push API returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return OutcomeTransientFailure, fmt.Errorf("failed to read expo push response: %w", err)
	}

	var result expoPushResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return OutcomeTransientFailure, fmt.Errorf("failed to parse expo push response: %w", err)
	}
	if len(result.Data) == 0 {
		return OutcomeTransientFailure, fmt.Errorf("expo push response contained no tickets")
	}

	ticket := result.Data[0]
	if ticket.Status == "ok" {
		return OutcomeDelivered, nil
	}

	if ticket.Details.Error == expoErrorDeviceNotRegistered {
		return OutcomePermanentFailure, fmt.Errorf("expo push rejected: %s", expoErrorDeviceNotRegistered)
	}

	return OutcomeTransientFailure, fmt.Errorf("expo push rejected: %s (%s)", ticket.Message, ticket.Details.Error)
}
