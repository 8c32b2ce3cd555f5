package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/yoyaku/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, plan, trial_ends_at, push_subscription, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Plan,
		user.TrialEndsAt, user.PushSubscription, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(ctx, `WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, `WHERE email = $1`, email)
}

func (r *PostgresUserRepo) findBy(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	var trialEndsAt sql.NullTime
	var pushSubscription sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, plan, trial_ends_at, push_subscription, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Plan,
		&trialEndsAt, &pushSubscription, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		user.TrialEndsAt = &t
	}
	if pushSubscription.Valid {
		user.PushSubscription = pushSubscription.String
	}

	return user, nil
}

// SetPushSubscription はプッシュ購読値を上書きする（単一スロット、後勝ち）。
func (r *PostgresUserRepo) SetPushSubscription(ctx context.Context, userID, raw string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET push_subscription = $2, updated_at = now() WHERE id = $1`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to set push subscription: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// ClearPushSubscription はプッシュ購読値をNULLにする。
// 対象ユーザーが存在しない場合もエラーにしない（スイープ中の削除と競合しうるため）。
func (r *PostgresUserRepo) ClearPushSubscription(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET push_subscription = NULL, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear push subscription: %w", err)
	}
	return nil
}

// UpgradeToPro はプランをproに変更し、trial_ends_atをNULLにする。
func (r *PostgresUserRepo) UpgradeToPro(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET plan = 'pro', trial_ends_at = NULL, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to upgrade user to pro: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// ListExpiredTrialIDs はplan=trialかつtrial_ends_at<=nowのユーザーIDを返す。
func (r *PostgresUserRepo) ListExpiredTrialIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM users WHERE plan = 'trial' AND trial_ends_at IS NOT NULL AND trial_ends_at <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired trials: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired trials: %w", err)
	}

	return ids, nil
}

// DemoteToFree は指定ユーザー群を単一のUPDATEでfreeプランに降格し、更新件数を返す。
func (r *PostgresUserRepo) DemoteToFree(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET plan = 'free', updated_at = now() WHERE id = ANY($1) AND plan = 'trial'`,
		pq.Array(userIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to demote users to free: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// requireRowAffected は更新対象の行が存在したことを検証する。
func requireRowAffected(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
