// Package handler はHTMLフォームベースのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/notekeeper/internal/auth"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/view"
)

// RegistrationService はユーザー登録に必要なサービスインターフェース。
type RegistrationService interface {
	Register(ctx context.Context, username, email, password string) (string, error)
}

// AuthenticatorInterface はログイン時の資格情報検証インターフェース。
type AuthenticatorInterface interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Result, error)
}

// SessionService はセッションの確立と破棄を行うインターフェース。
type SessionService interface {
	Establish(ctx context.Context, userID string) (*model.Session, error)
	Terminate(ctx context.Context, handle string) error
	MaxAge() time.Duration
}

// NoteServiceInterface はノートハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	Create(ctx context.Context, ownerID, title, content string) (*model.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error)
	FindOwned(ctx context.Context, noteID, ownerID string) (*model.Note, error)
	Update(ctx context.Context, noteID, ownerID, title, content string) (*model.Note, error)
	Delete(ctx context.Context, noteID, ownerID string) (bool, error)
}

// PageRenderer はHTMLページを描画するインターフェース。
type PageRenderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, p view.Page)
	RenderError(w http.ResponseWriter, r *http.Request, status int, message string)
}

// HealthChecker はDBの疎通確認インターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// 入力エラーメッセージ
const (
	msgMissingFields     = "Please enter all fields"
	msgPasswordMismatch  = "Passwords do not match"
	msgPasswordTooShort  = "Password must be at least 6 characters"
	msgNoteFieldsMissing = "Title and content are required"
)

// appErrorMessage はエラーからユーザー向けメッセージを取り出す。
// AppErrorでない場合はfallbackを返す。
func appErrorMessage(err error, fallback string) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// newValidator はフォーム検証用のvalidatorを生成する。
func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// formValue はフォーム値を前後の空白を除いて返す。
func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}
