// Package handler はHTTP APIのハンドラーを定義する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/yoyaku/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedResponse は認証エラーレスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestResponse はリクエストボディ解析失敗のレスポンスを書き込む。
func writeInvalidRequestResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeAppointmentNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAppointmentLimit:
		return http.StatusForbidden
	case model.ErrCodeInvalidSchedule, model.ErrCodeInvalidSubscription, model.ErrCodeAlreadyPro:
		return http.StatusBadRequest
	case model.ErrCodeEndpointBlocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
