package model

import (
	"errors"
	"fmt"
	"strings"
)

// AppError はリクエスト境界で扱うアプリケーションエラーを表す。
// 画面に表示するメッセージと原因カテゴリを含む。
type AppError struct {
	Code     string   // エラーコード
	Message  string   // ユーザー向けメッセージ
	Category string   // カテゴリ: auth, validation, note, system
	Details  []string // 入力検証エラーの個別メッセージ
	Err      error    // 原因となった下位エラー（ログ専用）
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は原因エラーを返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeNotFoundOrNotOwned = "NOT_FOUND_OR_NOT_OWNED"
	ErrCodeUnknownEmail       = "UNKNOWN_EMAIL"
	ErrCodeBadPassword        = "BAD_PASSWORD"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
)

// NewValidationError は入力検証エラーを生成する。
// detailsには画面に表示する個別メッセージを渡す。
func NewValidationError(message string, details ...string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Details:  details,
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "Email already exists",
		Category: "validation",
	}
}

// NewNotFoundOrNotOwnedError はノート未検出エラーを生成する。
// 存在しない場合と他ユーザー所有の場合を区別しない。
func NewNotFoundOrNotOwnedError() *AppError {
	return &AppError{
		Code:     ErrCodeNotFoundOrNotOwned,
		Message:  "Note not found",
		Category: "note",
	}
}

// NewUnknownEmailError は未登録メールアドレスによる認証失敗エラーを生成する。
func NewUnknownEmailError() *AppError {
	return &AppError{
		Code:     ErrCodeUnknownEmail,
		Message:  "That email is not registered",
		Category: "auth",
	}
}

// NewBadPasswordError はパスワード不一致による認証失敗エラーを生成する。
func NewBadPasswordError() *AppError {
	return &AppError{
		Code:     ErrCodeBadPassword,
		Message:  "Password incorrect",
		Category: "auth",
	}
}

// NewStoreUnavailableError は永続化層の障害エラーを生成する。
// 原因エラーはログ出力用に保持し、ユーザーには表示しない。
func NewStoreUnavailableError(message string, err error) *AppError {
	return &AppError{
		Code:     ErrCodeStoreUnavailable,
		Message:  message,
		Category: "system",
		Err:      err,
	}
}

// HasCode はerrのチェーンに指定コードのAppErrorが含まれるかを判定する。
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsAuthFailure はerrが認証失敗（UnknownEmail または BadPassword）かを判定する。
func IsAuthFailure(err error) bool {
	return HasCode(err, ErrCodeUnknownEmail) || HasCode(err, ErrCodeBadPassword)
}
