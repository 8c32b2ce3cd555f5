package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresAppointmentRepoはAppointmentRepositoryインターフェースを満たすことを検証
func TestPostgresAppointmentRepo_ImplementsInterface(t *testing.T) {
	var _ AppointmentRepository = (*PostgresAppointmentRepo)(nil)
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNewPostgresAppointmentRepo_Initializes(t *testing.T) {
	repo := NewPostgresAppointmentRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

var reminderCandidateColumns = []string{
	"id", "user_id", "title", "scheduled_at", "description", "reminder_sent",
	"created_at", "updated_at",
	"u_id", "name", "email", "push_subscription",
}

// ListDueForReminderの検索範囲が [now, now+window] の閉区間であることを検証。
// 上限パラメータはちょうどnow+windowであり、window=15分のとき
// scheduled_at = now+20分 の予約は範囲外となる。
func TestPostgresAppointmentRepo_ListDueForReminder_QueriesExactWindowBounds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	repo := NewPostgresAppointmentRepo(db)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	window := 15 * time.Minute

	rows := sqlmock.NewRows(reminderCandidateColumns).AddRow(
		"appt-1", "user-1", "歯科検診", now.Add(10*time.Minute), "定期検診", false,
		now.Add(-time.Hour), now.Add(-time.Hour),
		"user-1", "田中", "tanaka@example.com", `{"endpoint":"https://push.example.com/abc"}`,
	)

	mock.ExpectQuery(`a\.scheduled_at >= \$1 AND a\.scheduled_at <= \$2`).
		WithArgs(now, now.Add(window)).
		WillReturnRows(rows)

	candidates, err := repo.ListDueForReminder(context.Background(), now, window)
	if err != nil {
		t.Fatalf("ListDueForReminder がエラーを返した: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d件, want 1件", len(candidates))
	}
	if candidates[0].Appointment.ID != "appt-1" {
		t.Errorf("Appointment.ID = %q", candidates[0].Appointment.ID)
	}
	if candidates[0].Owner.Email != "tanaka@example.com" {
		t.Errorf("Owner.Email = %q", candidates[0].Owner.Email)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("クエリが期待した検索範囲で発行されていない: %v", err)
	}
}

// 送信済みの予約と購読未設定のユーザーはSQLレベルで除外されることを検証
func TestPostgresAppointmentRepo_ListDueForReminder_FiltersSentAndUnsubscribed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	repo := NewPostgresAppointmentRepo(db)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)a\.reminder_sent = FALSE.*u\.push_subscription IS NOT NULL`).
		WithArgs(now, now.Add(15*time.Minute)).
		WillReturnRows(sqlmock.NewRows(reminderCandidateColumns))

	candidates, err := repo.ListDueForReminder(context.Background(), now, 15*time.Minute)
	if err != nil {
		t.Fatalf("ListDueForReminder がエラーを返した: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("candidates = %d件, want 0件", len(candidates))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("送信済み・購読未設定の除外条件がクエリに含まれていない: %v", err)
	}
}

// DemoteToFreeは空のID列でDBアクセスせずに0件を返すことを検証
// （スイープは対象ゼロのサイクルが大半のため、無駄なUPDATEを発行しない）
func TestPostgresUserRepo_DemoteToFree_EmptyIDs(t *testing.T) {
	repo := NewPostgresUserRepo(nil) // dbはnilでも呼ばれないこと自体がテスト

	affected, err := repo.DemoteToFree(context.Background(), nil)
	if err != nil {
		t.Fatalf("空のID列でエラーが返った: %v", err)
	}
	if affected != 0 {
		t.Errorf("affected = %d, want 0", affected)
	}
}
