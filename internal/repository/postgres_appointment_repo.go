package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/yoyaku/internal/model"
)

// PostgresAppointmentRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresAppointmentRepo struct {
	db *sql.DB
}

// NewPostgresAppointmentRepo はPostgresAppointmentRepoを生成する。
func NewPostgresAppointmentRepo(db *sql.DB) *PostgresAppointmentRepo {
	return &PostgresAppointmentRepo{db: db}
}

const appointmentColumns = `id, user_id, title, scheduled_at, description, reminder_sent, created_at, updated_at`

// Create は予約を作成する。
func (r *PostgresAppointmentRepo) Create(ctx context.Context, appt *model.Appointment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO appointments (`+appointmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		appt.ID, appt.UserID, appt.Title, appt.ScheduledAt, appt.Description,
		appt.ReminderSent, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresAppointmentRepo) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	appt := &model.Appointment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`,
		id,
	).Scan(&appt.ID, &appt.UserID, &appt.Title, &appt.ScheduledAt, &appt.Description,
		&appt.ReminderSent, &appt.CreatedAt, &appt.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return appt, nil
}

// ListByUserID はユーザーの予約一覧をscheduled_at昇順で返す。
func (r *PostgresAppointmentRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE user_id = $1 ORDER BY scheduled_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		appt := &model.Appointment{}
		if err := rows.Scan(&appt.ID, &appt.UserID, &appt.Title, &appt.ScheduledAt,
			&appt.Description, &appt.ReminderSent, &appt.CreatedAt, &appt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appts, nil
}

// CountByUserID はユーザーの予約件数を返す。
func (r *PostgresAppointmentRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

// Update は予約のタイトル・日時・説明とreminder_sentを上書きする。
func (r *PostgresAppointmentRepo) Update(ctx context.Context, appt *model.Appointment) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE appointments
		 SET title = $2, scheduled_at = $3, description = $4, reminder_sent = $5, updated_at = $6
		 WHERE id = $1`,
		appt.ID, appt.Title, appt.ScheduledAt, appt.Description, appt.ReminderSent, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return requireRowAffected(result, "appointment", appt.ID)
}

// Delete は指定IDの予約を削除する。
func (r *PostgresAppointmentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return requireRowAffected(result, "appointment", id)
}

// ListDueForReminder はリマインダー送信対象の候補を所有者情報とJOINして返す。
func (r *PostgresAppointmentRepo) ListDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]*model.ReminderCandidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.title, a.scheduled_at, a.description, a.reminder_sent,
		        a.created_at, a.updated_at,
		        u.id, u.name, u.email, u.push_subscription
		 FROM appointments a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.scheduled_at >= $1 AND a.scheduled_at <= $2
		   AND a.reminder_sent = FALSE
		   AND u.push_subscription IS NOT NULL`,
		now, now.Add(window),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due appointments: %w", err)
	}
	defer rows.Close()

	var candidates []*model.ReminderCandidate
	for rows.Next() {
		c := &model.ReminderCandidate{}
		if err := rows.Scan(
			&c.Appointment.ID, &c.Appointment.UserID, &c.Appointment.Title,
			&c.Appointment.ScheduledAt, &c.Appointment.Description, &c.Appointment.ReminderSent,
			&c.Appointment.CreatedAt, &c.Appointment.UpdatedAt,
			&c.Owner.ID, &c.Owner.Name, &c.Owner.Email, &c.Owner.PushSubscription,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder candidates: %w", err)
	}
	return candidates, nil
}

// MarkReminderSent はreminder_sentをtrueにする。冪等。
func (r *PostgresAppointmentRepo) MarkReminderSent(ctx context.Context, appointmentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET reminder_sent = TRUE, updated_at = now() WHERE id = $1`,
		appointmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AppointmentRepository = (*PostgresAppointmentRepo)(nil)
