package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/yoyaku/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録する。
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	// Login は認証情報を検証しJWTを発行する。
	Login(ctx context.Context, email, password string) (string, error)
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// tokenResponse はトークン発行のAPIレスポンス。
type tokenResponse struct {
	Token string `json:"token"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "MISSING_FIELDS",
			Message:  "名前・メールアドレス・パスワードは必須です。",
			Category: "validation",
			Action:   "すべての項目を入力してください。",
		})
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Plan:  string(user.Plan),
	})
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokenResponse{Token: token})
}
