// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, appointment, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeAppointmentNotFound  = "APPOINTMENT_NOT_FOUND"
	ErrCodeAppointmentLimit     = "APPOINTMENT_LIMIT"
	ErrCodeInvalidSchedule      = "INVALID_SCHEDULE"
	ErrCodeInvalidSubscription  = "INVALID_SUBSCRIPTION"
	ErrCodeEndpointBlocked      = "ENDPOINT_BLOCKED"
	ErrCodeAlreadyPro           = "ALREADY_PRO"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError は登録済みメールアドレスエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewAppointmentNotFoundError は予約未検出エラーを生成する。
func NewAppointmentNotFoundError(appointmentID string) *APIError {
	return &APIError{
		Code:     ErrCodeAppointmentNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %s", appointmentID),
		Category: "appointment",
		Action:   "予約IDを確認してください。",
	}
}

// NewAppointmentLimitError は予約件数上限エラーを生成する。
func NewAppointmentLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeAppointmentLimit,
		Message:  fmt.Sprintf("無料プランの予約件数が上限（%d件）に達しています。", FreePlanAppointmentLimit),
		Category: "appointment",
		Action:   "不要な予約を削除するか、Proプランにアップグレードしてください。",
	}
}

// NewInvalidScheduleError は無効な予約日時エラーを生成する。
func NewInvalidScheduleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSchedule,
		Message:  fmt.Sprintf("無効な予約日時です: %s", reason),
		Category: "validation",
		Action:   "予約日時を確認してください。",
	}
}

// NewInvalidSubscriptionError は不正な購読値エラーを生成する。
func NewInvalidSubscriptionError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSubscription,
		Message:  "プッシュ購読の形式を認識できませんでした。",
		Category: "validation",
		Action:   "アプリまたはブラウザから通知を再度有効にしてください。",
	}
}

// NewEndpointBlockedError はセキュリティポリシーによる購読拒否エラーを生成する。
func NewEndpointBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeEndpointBlocked,
		Message:  "セキュリティポリシーにより、指定されたエンドポイントへの配信がブロックされました。",
		Category: "validation",
		Action:   "ブラウザが発行した正規のプッシュエンドポイントを使用してください。",
	}
}

// NewAlreadyProError はPro重複購入エラーを生成する。
func NewAlreadyProError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyPro,
		Message:  "既にProプランが有効です。",
		Category: "billing",
		Action:   "現在のプランはアカウント画面で確認できます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
