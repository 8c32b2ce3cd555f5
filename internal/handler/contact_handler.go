package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyaku/internal/model"
	"github.com/microcosm-cc/bluemonday"
)

// ContactMailer は問い合わせハンドラーが必要とするメール送信インターフェース。
type ContactMailer interface {
	// SendContact はサニタイズ済みの問い合わせ内容を運営宛に送信する。
	SendContact(ctx context.Context, name, email, sanitizedMessage string) error
}

// ContactHandler は問い合わせフォームのHTTPハンドラー。
type ContactHandler struct {
	mailer ContactMailer
	policy *bluemonday.Policy
}

// NewContactHandler はContactHandlerを生成する。
// 本文はStrictPolicyでサニタイズし、HTMLタグをすべて除去する。
func NewContactHandler(mailer ContactMailer) *ContactHandler {
	return &ContactHandler{
		mailer: mailer,
		policy: bluemonday.StrictPolicy(),
	}
}

// contactRequest は問い合わせリクエストのボディ。
type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email_contact"`
	Message string `json:"message"`
}

// contactResponse は問い合わせ受付のAPIレスポンス。
type contactResponse struct {
	Message string `json:"message"`
}

// SendContact は問い合わせ送信を処理する。
// POST /api/contact
func (h *ContactHandler) SendContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if req.Name == "" || req.Email == "" || req.Message == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "MISSING_FIELDS",
			Message:  "名前・メールアドレス・本文は必須です。",
			Category: "validation",
			Action:   "すべての項目を入力してください。",
		})
		return
	}

	sanitized := h.policy.Sanitize(req.Message)

	if err := h.mailer.SendContact(r.Context(), h.policy.Sanitize(req.Name), req.Email, sanitized); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contactResponse{Message: "お問い合わせを受け付けました。"})
}
