// Package model はドメインモデルを定義する。
package model

import "time"

// Appointment はユーザーが所有する予約を表す。
// ReminderSent はディスパッチャーのみが false→true に遷移させる。
// 予約編集で ScheduledAt が変更された場合は外部（予約サービス）が
// false にリセットし、次回以降のスイープで再通知対象となる。
type Appointment struct {
	ID           string
	UserID       string
	Title        string
	ScheduledAt  time.Time
	Description  string
	ReminderSent bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReminderCandidate はリマインダー送信対象の予約と所有者の組。
// 候補クエリ（ListDueForReminder）がJOIN結果として返す。
type ReminderCandidate struct {
	Appointment Appointment
	Owner       ReminderOwner
}

// ReminderOwner はリマインダー送信に必要な所有者情報の部分集合。
type ReminderOwner struct {
	ID               string
	Name             string
	Email            string
	PushSubscription string
}
