// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/notekeeper/internal/model"
)

// ErrDuplicateEmail はメールアドレスのユニーク制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Update はユーザー名・メールアドレス・パスワードハッシュを更新する。
	// 対象が存在しない場合はnilを返す。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Update(ctx context.Context, user *model.User) (*model.User, error)
}

// NoteRepository はノートデータの永続化インターフェース。
// 所有者チェックはすべてSQLの条件に含め、他ユーザーのノートには一切触れない。
type NoteRepository interface {
	// Create はノートを作成する。
	Create(ctx context.Context, note *model.Note) error

	// ListByUserID は指定ユーザーのノートを作成順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Note, error)

	// FindByIDAndUserID は所有者が一致するノートを取得する。見つからない場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Note, error)

	// UpdateOwned は所有者が一致するノートのタイトルと本文を更新する。
	// 対象が存在しない、または所有者が異なる場合はnilを返す。
	UpdateOwned(ctx context.Context, note *model.Note) (*model.Note, error)

	// DeleteOwned は所有者が一致するノートを削除し、削除したかどうかを返す。
	DeleteOwned(ctx context.Context, id, userID string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
