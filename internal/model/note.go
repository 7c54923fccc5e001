package model

import "time"

// Note はユーザーが所有するテキストノートを表す。
// UserIDは作成後に変更されない。
type Note struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
