// Package model はドメインモデルを定義する。
package model

import "time"

// Plan はユーザーの契約プランを表す。
type Plan string

const (
	// PlanFree は無料プラン。予約件数に上限がある。
	PlanFree Plan = "free"
	// PlanPro は有料プラン。予約件数は無制限。
	PlanPro Plan = "pro"
	// PlanTrial は試用プラン。TrialEndsAt を過ぎるとスイーパーがfreeに降格する。
	PlanTrial Plan = "trial"
)

// FreePlanAppointmentLimit は無料プランで保持できる予約件数の上限。
const FreePlanAppointmentLimit = 10

// User はサービス利用ユーザーを表す。
// PushSubscription は永続化された生の値（Expoトークン文字列または
// Web Push購読JSON）をそのまま保持する。形の解釈は ParsePushTarget が
// 読み取り時に行う（単一スロット、後勝ち）。
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     string
	Plan             Plan
	TrialEndsAt      *time.Time // plan=trial のときのみ意味を持つ
	PushSubscription string     // 空文字列は未登録を表す
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsValid はプラン値が定義済みのいずれかであるかを返す。
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanTrial:
		return true
	}
	return false
}
