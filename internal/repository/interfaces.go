// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/yoyaku/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// SetPushSubscription はプッシュ購読値を上書きする（単一スロット、後勝ち）。
	// 購読エンドポイントから呼ばれる。storageには生の値をそのまま渡す。
	SetPushSubscription(ctx context.Context, userID, raw string) error

	// ClearPushSubscription はプッシュ購読値をNULLにする。
	// 恒久的な配信失敗を検出したディスパッチャーのみが呼ぶ。
	ClearPushSubscription(ctx context.Context, userID string) error

	// UpgradeToPro はプランをproに変更し、trial_ends_atをNULLにする。
	UpgradeToPro(ctx context.Context, userID string) error

	// ListExpiredTrialIDs はplan=trialかつtrial_ends_at<=nowのユーザーIDを返す。
	ListExpiredTrialIDs(ctx context.Context, now time.Time) ([]string, error)

	// DemoteToFree は指定ユーザー群を単一のUPDATEでfreeプランに降格し、
	// 更新件数を返す。空のID列は0件更新としてすぐ返る。
	DemoteToFree(ctx context.Context, userIDs []string) (int64, error)
}

// AppointmentRepository は予約データの永続化インターフェース。
type AppointmentRepository interface {
	// Create は予約を作成する。
	Create(ctx context.Context, appt *model.Appointment) error

	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Appointment, error)

	// ListByUserID はユーザーの予約一覧をscheduled_at昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Appointment, error)

	// CountByUserID はユーザーの予約件数を返す。プラン上限の判定に使用する。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Update は予約のタイトル・日時・説明とreminder_sentを上書きする。
	Update(ctx context.Context, appt *model.Appointment) error

	// Delete は指定IDの予約を削除する。
	Delete(ctx context.Context, id string) error

	// ListDueForReminder はリマインダー送信対象の候補を返す。
	// 対象: scheduled_at ∈ [now, now+window] かつ reminder_sent=false かつ
	// 所有者のpush_subscriptionが非NULL。所有者情報をJOINして返す。
	// 並び順は保証しない。読み取り専用。
	ListDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]*model.ReminderCandidate, error)

	// MarkReminderSent はreminder_sentをtrueにする。冪等。
	MarkReminderSent(ctx context.Context, appointmentID string) error
}
