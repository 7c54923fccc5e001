// Package user はユーザー資格情報の管理を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコスト。
const DefaultBcryptCost = 10

// ProfileUpdate はユーザー情報の更新内容を表す。
// PasswordChangedがtrueの場合のみPasswordを再ハッシュして保存する。
type ProfileUpdate struct {
	Username        string
	Email           string
	Password        string
	PasswordChanged bool
}

// SessionRevoker はユーザーの全セッションを失効させるインターフェース。
// repository.SessionRepositoryが実装する。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー資格情報のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	sessions   SessionRevoker
	bcryptCost int
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// bcryptCostが範囲外の場合はDefaultBcryptCostを使用する。
// sessionsがnilの場合、パスワード変更時のセッション失効は行わない。
func NewService(userRepo repository.UserRepository, sessions SessionRevoker, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = DefaultBcryptCost
	}
	return &Service{
		userRepo:   userRepo,
		sessions:   sessions,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// NormalizeEmail はメールアドレスの前後空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はユーザーを登録し、生成したユーザーIDを返す。
// メールアドレスが登録済みの場合はDuplicateEmailエラーを返す。
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return "", model.NewValidationError("invalid registration", "Please enter all fields")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", model.NewStoreUnavailableError("Error registering user", err)
	}
	if existing != nil {
		return "", model.NewDuplicateEmailError()
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return "", err
	}

	now := s.now()
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 事前確認と挿入の間に同じメールアドレスが登録された場合もユニーク制約で検出する
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", model.NewDuplicateEmailError()
		}
		return "", model.NewStoreUnavailableError("Error registering user", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", u.ID),
	)

	return u.ID, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// VerifyPassword は平文パスワードが保存済みハッシュと一致するかを判定する。
// 比較は定数時間で行われる。
func (s *Service) VerifyPassword(u *model.User, plaintext string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext)) == nil
}

// Update はユーザー情報を更新する。対象ユーザーが存在しない場合はnilを返す。
// パスワードハッシュはPasswordChangedがtrueの場合のみ再計算し、
// そのユーザーの既存セッションをすべて失効させる。
func (s *Service) Update(ctx context.Context, id string, upd ProfileUpdate) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreUnavailableError("Error updating user", err)
	}
	if u == nil {
		return nil, nil
	}

	if name := strings.TrimSpace(upd.Username); name != "" {
		u.Username = name
	}
	if email := NormalizeEmail(upd.Email); email != "" {
		u.Email = email
	}
	if upd.PasswordChanged {
		if upd.Password == "" {
			return nil, model.NewValidationError("invalid password", "Please enter all fields")
		}
		hash, err := s.hashPassword(upd.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now()

	updated, err := s.userRepo.Update(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, model.NewStoreUnavailableError("Error updating user", err)
	}

	if upd.PasswordChanged && updated != nil && s.sessions != nil {
		if err := s.sessions.DeleteByUserID(ctx, updated.ID); err != nil {
			slog.Error("failed to revoke sessions after password change",
				slog.String("user_id", updated.ID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewStoreUnavailableError("Error updating user", err)
		}
	}
	return updated, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
