package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// UserFinder はセッションの主体となるユーザーを読み込むインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	MaxAge int // セッション有効期間（秒）
}

// SessionManager はCookieで運ばれるセッションハンドルとユーザーIDの対応を管理する。
type SessionManager struct {
	sessionRepo repository.SessionRepository
	users       UserFinder
	config      SessionConfig
	now         func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(sessionRepo repository.SessionRepository, users UserFinder, config SessionConfig) *SessionManager {
	return &SessionManager{
		sessionRepo: sessionRepo,
		users:       users,
		config:      config,
		now:         time.Now,
	}
}

// MaxAge はセッションの有効期間を返す。
func (m *SessionManager) MaxAge() time.Duration {
	return time.Duration(m.config.MaxAge) * time.Second
}

// Establish は新しいセッションを発行し永続化する。
func (m *SessionManager) Establish(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(m.MaxAge()),
		CreatedAt: now,
	}

	if err := m.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("session established", slog.String("user_id", userID))
	return session, nil
}

// Resolve はセッションハンドルから現在のユーザーを返す。
// セッションが無い、期限切れ、またはストア障害の場合はnilを返す（未認証扱い）。
// 障害はログに記録し、呼び出し元へは伝播しない。
func (m *SessionManager) Resolve(ctx context.Context, handle string) *model.User {
	if handle == "" {
		return nil
	}

	session, err := m.sessionRepo.FindByID(ctx, handle)
	if err != nil {
		slog.Warn("failed to resolve session",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if session == nil || session.Expired(m.now()) {
		return nil
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		slog.Warn("failed to load session user",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return user
}

// Terminate はセッションを破棄する。ストアのエラーはそのまま返し、再試行しない。
func (m *SessionManager) Terminate(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}

	if err := m.sessionRepo.DeleteByID(ctx, handle); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session terminated")
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
