package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyaku/internal/middleware"
)

// BillingServiceInterface は課金ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	// SubscribePro はユーザーをプロプランへ移行し、新プランを含むJWTを再発行する。
	SubscribePro(ctx context.Context, userID string) (string, error)
}

// BillingHandler はプラン変更のHTTPハンドラー。
type BillingHandler struct {
	service BillingServiceInterface
}

// NewBillingHandler はBillingHandlerを生成する。
func NewBillingHandler(service BillingServiceInterface) *BillingHandler {
	return &BillingHandler{service: service}
}

// subscribeProResponse はプロ移行のAPIレスポンス。
// クライアントは再発行されたトークンで手持ちのJWTを差し替える。
type subscribeProResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// SubscribePro はプロプランへの移行を処理する。
// POST /api/billing/subscribe-pro
func (h *BillingHandler) SubscribePro(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	token, err := h.service.SubscribePro(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subscribeProResponse{
		Message: "プロプランへ移行しました。",
		Token:   token,
	})
}
