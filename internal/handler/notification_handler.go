package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hitoshi/yoyaku/internal/middleware"
)

// subscriptionBodyLimit は購読リクエストボディの最大サイズ（バイト）。
const subscriptionBodyLimit = 8 * 1024

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	// Subscribe はプッシュ購読を登録する。生のボディ文字列をそのまま受け取る。
	Subscribe(ctx context.Context, userID, raw string) error
	// VAPIDPublicKey はWeb Push用の公開鍵を返す。
	VAPIDPublicKey() string
}

// NotificationHandler はプッシュ購読のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// vapidKeyResponse はVAPID公開鍵のAPIレスポンス。
type vapidKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// Subscribe はプッシュ購読登録を処理する。
// ボディはExpoトークン文字列またはWeb Push購読JSONをそのまま受け取り、
// 解釈はサービス層に委ねる。
// POST /api/notifications/subscribe
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, subscriptionBodyLimit))
	if err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if err := h.service.Subscribe(r.Context(), userID, string(body)); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VAPIDPublicKey はWeb Push用VAPID公開鍵を返す。
// GET /api/notifications/vapid-public-key
func (h *NotificationHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vapidKeyResponse{PublicKey: h.service.VAPIDPublicKey()})
}
