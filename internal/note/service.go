// Package note はノートの所有者スコープ付きCRUDを提供する。
package note

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// Service はノート管理のサービス層。
// すべての参照・更新・削除は(noteID, ownerID)の組で絞り込む。
type Service struct {
	noteRepo repository.NoteRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(noteRepo repository.NoteRepository) *Service {
	return &Service{
		noteRepo: noteRepo,
		now:      time.Now,
	}
}

// Create はノートを作成する。タイトルまたは本文が空の場合はValidationErrorを返す。
func (s *Service) Create(ctx context.Context, ownerID, title, content string) (*model.Note, error) {
	if err := validateFields(title, content); err != nil {
		return nil, err
	}

	now := s.now()
	n := &model.Note{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.noteRepo.Create(ctx, n); err != nil {
		return nil, model.NewStoreUnavailableError("Error creating note", err)
	}
	return n, nil
}

// ListByOwner は所有者のノートを作成順（古い順）で返す。
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	notes, err := s.noteRepo.ListByUserID(ctx, ownerID)
	if err != nil {
		return nil, model.NewStoreUnavailableError("Error retrieving notes", err)
	}
	return notes, nil
}

// FindOwned は所有者が一致するノートを返す。
// 存在しない場合、他ユーザー所有の場合、IDがUUIDとして不正な場合はいずれもnilを返す。
func (s *Service) FindOwned(ctx context.Context, noteID, ownerID string) (*model.Note, error) {
	if !validID(noteID) {
		return nil, nil
	}
	n, err := s.noteRepo.FindByIDAndUserID(ctx, noteID, ownerID)
	if err != nil {
		return nil, model.NewStoreUnavailableError("Error retrieving note", err)
	}
	return n, nil
}

// Update は所有者が一致するノートのタイトルと本文を上書きする。
// 入力が不正な場合はストアに触れずにValidationErrorを返す。
// 対象が存在しない、または所有者が異なる場合はnilを返す。
func (s *Service) Update(ctx context.Context, noteID, ownerID, title, content string) (*model.Note, error) {
	if err := validateFields(title, content); err != nil {
		return nil, err
	}
	if !validID(noteID) {
		return nil, nil
	}

	n, err := s.noteRepo.UpdateOwned(ctx, &model.Note{
		ID:        noteID,
		UserID:    ownerID,
		Title:     title,
		Content:   content,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return nil, model.NewStoreUnavailableError("Error updating note", err)
	}
	return n, nil
}

// Delete は所有者が一致するノートを削除し、削除したかどうかを返す。
func (s *Service) Delete(ctx context.Context, noteID, ownerID string) (bool, error) {
	if !validID(noteID) {
		return false, nil
	}
	ok, err := s.noteRepo.DeleteOwned(ctx, noteID, ownerID)
	if err != nil {
		return false, model.NewStoreUnavailableError("Error deleting note", err)
	}
	return ok, nil
}

func validateFields(title, content string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return model.NewValidationError("invalid note", "Title and content are required")
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
