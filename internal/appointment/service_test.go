package appointment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/yoyaku/internal/model"
)

// --- モック定義 ---

type mockApptRepo struct {
	createFn        func(ctx context.Context, appt *model.Appointment) error
	findByIDFn      func(ctx context.Context, id string) (*model.Appointment, error)
	listByUserIDFn  func(ctx context.Context, userID string) ([]*model.Appointment, error)
	countByUserIDFn func(ctx context.Context, userID string) (int, error)
	updateFn        func(ctx context.Context, appt *model.Appointment) error
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockApptRepo) Create(ctx context.Context, appt *model.Appointment) error {
	if m.createFn != nil {
		return m.createFn(ctx, appt)
	}
	return nil
}

func (m *mockApptRepo) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockApptRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Appointment, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockApptRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.countByUserIDFn != nil {
		return m.countByUserIDFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockApptRepo) Update(ctx context.Context, appt *model.Appointment) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, appt)
	}
	return nil
}

func (m *mockApptRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockApptRepo) ListDueForReminder(_ context.Context, _ time.Time, _ time.Duration) ([]*model.ReminderCandidate, error) {
	return nil, nil
}

func (m *mockApptRepo) MarkReminderSent(_ context.Context, _ string) error { return nil }

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error { return nil }

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) SetPushSubscription(_ context.Context, _, _ string) error { return nil }
func (m *mockUserRepo) ClearPushSubscription(_ context.Context, _ string) error { return nil }
func (m *mockUserRepo) UpgradeToPro(_ context.Context, _ string) error          { return nil }

func (m *mockUserRepo) ListExpiredTrialIDs(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

func (m *mockUserRepo) DemoteToFree(_ context.Context, _ []string) (int64, error) {
	return 0, nil
}

type mockMailer struct {
	sendConfirmationFn func(ctx context.Context, user *model.User, appt *model.Appointment) error
	calls              int
}

func (m *mockMailer) SendConfirmation(ctx context.Context, user *model.User, appt *model.Appointment) error {
	m.calls++
	if m.sendConfirmationFn != nil {
		return m.sendConfirmationFn(ctx, user, appt)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func trialUser(id string) *model.User {
	return &model.User{ID: id, Name: "田中太郎", Email: "tanaka@example.com", Plan: model.PlanTrial}
}

// --- Create のテスト ---

// TestCreate_Success_SendsConfirmation は作成成功時に確認メールが送信されることを検証する。
func TestCreate_Success_SendsConfirmation(t *testing.T) {
	var created *model.Appointment
	apptRepo := &mockApptRepo{
		createFn: func(ctx context.Context, appt *model.Appointment) error {
			created = appt
			return nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return trialUser(id), nil
		},
	}
	mailer := &mockMailer{}

	svc := NewService(apptRepo, userRepo, mailer, newTestLogger())

	scheduledAt := time.Now().Add(24 * time.Hour)
	appt, err := svc.Create(context.Background(), "user-1", "歯医者", scheduledAt, "定期検診")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if appt.ID == "" {
		t.Error("expected non-empty appointment ID")
	}
	if appt.ReminderSent {
		t.Error("new appointment should not be marked as reminded")
	}
	if mailer.calls != 1 {
		t.Errorf("confirmation mail calls = %d, want 1", mailer.calls)
	}
}

// TestCreate_MailerFailure_StillSucceeds は確認メール失敗でも作成が成功することを検証する。
func TestCreate_MailerFailure_StillSucceeds(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return trialUser(id), nil
		},
	}
	mailer := &mockMailer{
		sendConfirmationFn: func(ctx context.Context, user *model.User, appt *model.Appointment) error {
			return errors.New("smtp unavailable")
		},
	}

	svc := NewService(&mockApptRepo{}, userRepo, mailer, newTestLogger())

	_, err := svc.Create(context.Background(), "user-1", "歯医者", time.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("create should succeed even when mail fails: %v", err)
	}
}

// TestCreate_FreePlanAtLimit_ReturnsLimitError は上限到達時に
// AppointmentLimitエラーが返ることを検証する。
func TestCreate_FreePlanAtLimit_ReturnsLimitError(t *testing.T) {
	apptRepo := &mockApptRepo{
		countByUserIDFn: func(ctx context.Context, userID string) (int, error) {
			return model.FreePlanAppointmentLimit, nil
		},
		createFn: func(ctx context.Context, appt *model.Appointment) error {
			t.Fatal("Create should not be called at plan limit")
			return nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Plan: model.PlanFree}, nil
		},
	}

	svc := NewService(apptRepo, userRepo, &mockMailer{}, newTestLogger())

	_, err := svc.Create(context.Background(), "user-1", "歯医者", time.Now().Add(time.Hour), "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeAppointmentLimit {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAppointmentLimit)
	}
}

// TestCreate_ProPlanOverLimit_Succeeds はproプランが上限の影響を受けないことを検証する。
func TestCreate_ProPlanOverLimit_Succeeds(t *testing.T) {
	apptRepo := &mockApptRepo{
		countByUserIDFn: func(ctx context.Context, userID string) (int, error) {
			t.Fatal("CountByUserID should not be called for pro plan")
			return 0, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Plan: model.PlanPro}, nil
		},
	}

	svc := NewService(apptRepo, userRepo, &mockMailer{}, newTestLogger())

	if _, err := svc.Create(context.Background(), "user-1", "歯医者", time.Now().Add(time.Hour), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestCreate_MissingTitle_ReturnsError はタイトルなしでエラーが返ることを検証する。
func TestCreate_MissingTitle_ReturnsError(t *testing.T) {
	svc := NewService(&mockApptRepo{}, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	if _, err := svc.Create(context.Background(), "user-1", "", time.Now(), ""); err == nil {
		t.Error("expected error for empty title")
	}
}

// TestCreate_ZeroScheduledAt_ReturnsError は日時なしでエラーが返ることを検証する。
func TestCreate_ZeroScheduledAt_ReturnsError(t *testing.T) {
	svc := NewService(&mockApptRepo{}, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	if _, err := svc.Create(context.Background(), "user-1", "歯医者", time.Time{}, ""); err == nil {
		t.Error("expected error for zero scheduled_at")
	}
}

// --- Update のテスト ---

// TestUpdate_ScheduleChange_ResetsReminderSent は日時変更で
// reminder_sentがリセットされることを検証する。
func TestUpdate_ScheduleChange_ResetsReminderSent(t *testing.T) {
	original := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	var updated *model.Appointment

	apptRepo := &mockApptRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Appointment, error) {
			return &model.Appointment{
				ID:           id,
				UserID:       "user-1",
				Title:        "歯医者",
				ScheduledAt:  original,
				ReminderSent: true,
			}, nil
		},
		updateFn: func(ctx context.Context, appt *model.Appointment) error {
			updated = appt
			return nil
		},
	}

	svc := NewService(apptRepo, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	newTime := original.Add(2 * time.Hour)
	_, err := svc.Update(context.Background(), "user-1", "appt-1", "歯医者", newTime, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated == nil {
		t.Fatal("expected Update to be called")
	}
	if updated.ReminderSent {
		t.Error("reminder_sent should be reset when scheduled_at changes")
	}
}

// TestUpdate_SameSchedule_KeepsReminderSent は日時が同じ場合に
// reminder_sentが維持されることを検証する。
func TestUpdate_SameSchedule_KeepsReminderSent(t *testing.T) {
	scheduledAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	var updated *model.Appointment

	apptRepo := &mockApptRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Appointment, error) {
			return &model.Appointment{
				ID:           id,
				UserID:       "user-1",
				Title:        "歯医者",
				ScheduledAt:  scheduledAt,
				ReminderSent: true,
			}, nil
		},
		updateFn: func(ctx context.Context, appt *model.Appointment) error {
			updated = appt
			return nil
		},
	}

	svc := NewService(apptRepo, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	_, err := svc.Update(context.Background(), "user-1", "appt-1", "新しいタイトル", scheduledAt, "説明変更")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !updated.ReminderSent {
		t.Error("reminder_sent should be kept when scheduled_at is unchanged")
	}
	if updated.Title != "新しいタイトル" {
		t.Errorf("title = %q, want %q", updated.Title, "新しいタイトル")
	}
}

// TestUpdate_OtherUsersAppointment_ReturnsNotFound は他ユーザーの予約の更新で
// NotFoundが返ることを検証する。
func TestUpdate_OtherUsersAppointment_ReturnsNotFound(t *testing.T) {
	apptRepo := &mockApptRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Appointment, error) {
			return &model.Appointment{ID: id, UserID: "other-user"}, nil
		},
		updateFn: func(ctx context.Context, appt *model.Appointment) error {
			t.Fatal("Update should not be called for other user's appointment")
			return nil
		},
	}

	svc := NewService(apptRepo, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	_, err := svc.Update(context.Background(), "user-1", "appt-1", "タイトル", time.Now(), "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeAppointmentNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAppointmentNotFound)
	}
}

// --- Delete のテスト ---

// TestDelete_OwnAppointment_Succeeds は自分の予約の削除が成功することを検証する。
func TestDelete_OwnAppointment_Succeeds(t *testing.T) {
	deleted := false
	apptRepo := &mockApptRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Appointment, error) {
			return &model.Appointment{ID: id, UserID: "user-1"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}

	svc := NewService(apptRepo, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	if err := svc.Delete(context.Background(), "user-1", "appt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected Delete to be called")
	}
}

// TestDelete_MissingAppointment_ReturnsNotFound は存在しない予約の削除で
// NotFoundが返ることを検証する。
func TestDelete_MissingAppointment_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockApptRepo{}, &mockUserRepo{}, &mockMailer{}, newTestLogger())

	err := svc.Delete(context.Background(), "user-1", "missing-appt")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeAppointmentNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAppointmentNotFound)
	}
}
