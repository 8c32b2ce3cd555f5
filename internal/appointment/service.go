// Package appointment は予約のCRUDとプラン制限の適用を提供する。
package appointment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/yoyaku/internal/model"
	"github.com/hitoshi/yoyaku/internal/repository"
)

// ConfirmationMailer は予約確認メールの送信に必要なインターフェース。
// mailer.Mailerの部分集合として定義する。
type ConfirmationMailer interface {
	SendConfirmation(ctx context.Context, user *model.User, appt *model.Appointment) error
}

// Service は予約に関するビジネスロジックを提供する。
type Service struct {
	apptRepo repository.AppointmentRepository
	userRepo repository.UserRepository
	mailer   ConfirmationMailer
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	apptRepo repository.AppointmentRepository,
	userRepo repository.UserRepository,
	mailer ConfirmationMailer,
	logger *slog.Logger,
) *Service {
	return &Service{
		apptRepo: apptRepo,
		userRepo: userRepo,
		mailer:   mailer,
		logger:   logger,
	}
}

// List はユーザーの予約一覧をscheduled_at昇順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Appointment, error) {
	appts, err := s.apptRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// Create は予約を作成する。
// proプラン以外のユーザーには予約件数の上限を適用する。
// 作成後、確認メールをベストエフォートで送信する（失敗しても作成は成功扱い）。
func (s *Service) Create(ctx context.Context, userID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
	if title == "" {
		return nil, model.NewInvalidScheduleError("タイトルは必須です")
	}
	if scheduledAt.IsZero() {
		return nil, model.NewInvalidScheduleError("予約日時は必須です")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	// proプランは無制限。trial/freeは上限あり
	if user.Plan != model.PlanPro {
		count, err := s.apptRepo.CountByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count appointments: %w", err)
		}
		if count >= model.FreePlanAppointmentLimit {
			return nil, model.NewAppointmentLimitError()
		}
	}

	now := time.Now()
	appt := &model.Appointment{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		ScheduledAt: scheduledAt,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.apptRepo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.logger.Info("appointment created",
		slog.String("appointment_id", appt.ID),
		slog.String("user_id", userID),
		slog.Time("scheduled_at", scheduledAt),
	)

	// 確認メールはベストエフォート。失敗してもロールバックしない
	if err := s.mailer.SendConfirmation(ctx, user, appt); err != nil {
		s.logger.Warn("failed to send confirmation email",
			slog.String("appointment_id", appt.ID),
			slog.String("error", err.Error()),
		)
	}

	return appt, nil
}

// Update は予約を更新する。
// scheduled_atが変更された場合はreminder_sentをfalseに戻し、
// 新しい日時で再度リマインダーの対象にする。
// 他ユーザーの予約は存在しないものとして扱う。
func (s *Service) Update(ctx context.Context, userID, appointmentID, title string, scheduledAt time.Time, description string) (*model.Appointment, error) {
	appt, err := s.apptRepo.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	if appt == nil || appt.UserID != userID {
		return nil, model.NewAppointmentNotFoundError(appointmentID)
	}

	if title == "" {
		return nil, model.NewInvalidScheduleError("タイトルは必須です")
	}
	if scheduledAt.IsZero() {
		return nil, model.NewInvalidScheduleError("予約日時は必須です")
	}

	// 日時変更はリマインダー送信済みフラグをリセットする
	if !scheduledAt.Equal(appt.ScheduledAt) {
		appt.ReminderSent = false
	}

	appt.Title = title
	appt.ScheduledAt = scheduledAt
	appt.Description = description
	appt.UpdatedAt = time.Now()

	if err := s.apptRepo.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	s.logger.Info("appointment updated",
		slog.String("appointment_id", appt.ID),
		slog.String("user_id", userID),
	)

	return appt, nil
}

// Delete は予約を削除する。他ユーザーの予約は存在しないものとして扱う。
func (s *Service) Delete(ctx context.Context, userID, appointmentID string) error {
	appt, err := s.apptRepo.FindByID(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to find appointment: %w", err)
	}
	if appt == nil || appt.UserID != userID {
		return model.NewAppointmentNotFoundError(appointmentID)
	}

	if err := s.apptRepo.Delete(ctx, appointmentID); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	s.logger.Info("appointment deleted",
		slog.String("appointment_id", appointmentID),
		slog.String("user_id", userID),
	)

	return nil
}
