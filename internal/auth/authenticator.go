// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/notekeeper/internal/model"
)

// CredentialStore は認証に必要な資格情報ストアのインターフェース。
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	VerifyPassword(u *model.User, plaintext string) bool
}

// Outcome は認証試行の結果状態を表す。
type Outcome string

const (
	OutcomeAuthenticated Outcome = "authenticated"
	OutcomeRejected      Outcome = "rejected"
)

// Result は認証試行の結果。
// Authenticatedの場合はUserIDを、Rejectedの場合はReasonを持つ。
type Result struct {
	Outcome Outcome
	UserID  string
	Reason  *model.AppError
}

// Authenticated は認証に成功したかどうかを返す。
func (r *Result) Authenticated() bool {
	return r != nil && r.Outcome == OutcomeAuthenticated
}

// Message はユーザーに表示する拒否理由を返す。成功時は空文字を返す。
func (r *Result) Message() string {
	if r == nil || r.Reason == nil {
		return ""
	}
	return r.Reason.Message
}

// Authenticator はメールアドレスとパスワードの組を検証する。
type Authenticator struct {
	store CredentialStore
}

// NewAuthenticator はAuthenticatorを生成する。
func NewAuthenticator(store CredentialStore) *Authenticator {
	return &Authenticator{store: store}
}

// Authenticate はメールアドレスとパスワードを検証する。
// 未登録メールアドレスとパスワード不一致はRejectedのResultとして返し、
// ストア障害の場合のみStoreUnavailableエラーを返す。
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*Result, error) {
	u, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to look up credentials",
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreUnavailableError("Error logging in", err)
	}
	if u == nil {
		return &Result{Outcome: OutcomeRejected, Reason: model.NewUnknownEmailError()}, nil
	}
	if !a.store.VerifyPassword(u, password) {
		return &Result{Outcome: OutcomeRejected, Reason: model.NewBadPasswordError()}, nil
	}
	return &Result{Outcome: OutcomeAuthenticated, UserID: u.ID}, nil
}
