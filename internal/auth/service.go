// Package auth はユーザー登録・ログインとJWTトークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/yoyaku/internal/model"
	"github.com/hitoshi/yoyaku/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	JWTSecret string        // HS256署名鍵
	TokenTTL  time.Duration // トークン有効期間
}

// Claims はJWTのカスタムクレーム。
// ユーザーIDはRegisteredClaims.Subjectに格納する。
type Claims struct {
	Name string `json:"name"`
	Plan string `json:"plan"`
	jwt.RegisteredClaims
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		config:   config,
	}
}

// Register は新規ユーザーを登録する。
// メールアドレスが既に使用されている場合はEmailTakenエラーを返す。
// パスワードはbcryptでハッシュ化して保存する。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("name, email and password are required")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Plan:         model.PlanTrial,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	return user, nil
}

// Login はメールアドレスとパスワードを検証し、JWTを発行する。
// ユーザーが存在しない場合もパスワード不一致の場合も同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return "", model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return token, nil
}

// IssueToken はユーザーのJWTを発行する。
// プラン変更後の再発行（billing）でも使用する。
func (s *Service) IssueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: user.Name,
		Plan: string(user.Plan),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// SubscribePro はユーザーをproプランに切り替え、新しいプランを反映した
// JWTを再発行する。既にproの場合はAlreadyProエラーを返す。
func (s *Service) SubscribePro(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}
	if user.Plan == model.PlanPro {
		return "", model.NewAlreadyProError()
	}

	if err := s.userRepo.UpgradeToPro(ctx, userID); err != nil {
		return "", fmt.Errorf("failed to upgrade plan: %w", err)
	}

	user.Plan = model.PlanPro
	user.TrialEndsAt = nil

	token, err := s.IssueToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user subscribed to pro plan", slog.String("user_id", userID))

	return token, nil
}

// VerifyToken はJWTを検証し、ユーザーIDを返す。
// middleware.TokenVerifierインターフェースを実装する。
func (s *Service) VerifyToken(tokenString string) (string, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseToken はJWTを検証し、クレームを返す。
// 署名アルゴリズムはHS256のみ許可する。
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
