package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/notekeeper/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したノートリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

const noteColumns = `id, user_id, title, content, created_at, updated_at`

// Create はノートを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.UserID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーのノートを作成順で返す。
// 同一時刻に作成されたノートは挿入順（seq）で並べる。
func (r *PostgresNoteRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE user_id = $1
		 ORDER BY created_at ASC, seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		n := &model.Note{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return notes, nil
}

// FindByIDAndUserID は所有者が一致するノートを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Note, error) {
	note, err := scanNote(r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

// UpdateOwned は所有者が一致するノートのタイトルと本文を更新する。
// 対象が存在しない、または所有者が異なる場合はnilを返す。
func (r *PostgresNoteRepo) UpdateOwned(ctx context.Context, note *model.Note) (*model.Note, error) {
	updated, err := scanNote(r.db.QueryRowContext(ctx,
		`UPDATE notes
		 SET title = $3, content = $4, updated_at = $5
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+noteColumns,
		note.ID, note.UserID, note.Title, note.Content, note.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return updated, nil
}

// DeleteOwned は所有者が一致するノートを削除し、削除したかどうかを返す。
func (r *PostgresNoteRepo) DeleteOwned(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func scanNote(row *sql.Row) (*model.Note, error) {
	n := &model.Note{}
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
