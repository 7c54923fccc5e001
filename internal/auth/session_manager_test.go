package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/hitoshi/notekeeper/internal/model"
)

// --- モック定義 ---

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id}, nil
}

var hexHandle = regexp.MustCompile(`^[0-9a-f]{64}$`)

// --- テスト ---

func TestSessionManager_Establish(t *testing.T) {
	var saved *model.Session
	repo := &mockSessionRepo{
		createFn: func(_ context.Context, s *model.Session) error {
			saved = s
			return nil
		},
	}
	m := NewSessionManager(repo, &mockUserFinder{}, SessionConfig{MaxAge: 3600})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s, err := m.Establish(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}
	if saved != s {
		t.Error("session was not persisted")
	}
	if !hexHandle.MatchString(s.ID) {
		t.Errorf("ID = %q, want 64 hex chars", s.ID)
	}
	if s.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", s.UserID, "user-1")
	}
	if !s.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, now.Add(time.Hour))
	}
}

func TestSessionManager_Establish_UniqueHandles(t *testing.T) {
	m := NewSessionManager(&mockSessionRepo{}, &mockUserFinder{}, SessionConfig{MaxAge: 60})
	a, _ := m.Establish(context.Background(), "u")
	b, _ := m.Establish(context.Background(), "u")
	if a.ID == b.ID {
		t.Error("expected distinct session handles")
	}
}

func TestSessionManager_Establish_StoreError(t *testing.T) {
	repo := &mockSessionRepo{
		createFn: func(context.Context, *model.Session) error { return errors.New("db down") },
	}
	m := NewSessionManager(repo, &mockUserFinder{}, SessionConfig{MaxAge: 60})
	if _, err := m.Establish(context.Background(), "u"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestSessionManager_Resolve(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := map[string]*model.Session{
		"live":    {ID: "live", UserID: "user-1", ExpiresAt: now.Add(time.Hour)},
		"expired": {ID: "expired", UserID: "user-1", ExpiresAt: now},
		"orphan":  {ID: "orphan", UserID: "gone", ExpiresAt: now.Add(time.Hour)},
	}
	repo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			if id == "broken" {
				return nil, errors.New("db down")
			}
			return sessions[id], nil
		},
	}
	users := &mockUserFinder{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			switch id {
			case "user-1":
				return &model.User{ID: "user-1"}, nil
			case "gone":
				return nil, nil
			}
			return nil, errors.New("unexpected")
		},
	}
	m := NewSessionManager(repo, users, SessionConfig{MaxAge: 60})
	m.now = func() time.Time { return now }

	tests := []struct {
		name   string
		handle string
		want   string
	}{
		{name: "有効なセッション", handle: "live", want: "user-1"},
		{name: "期限切れ", handle: "expired", want: ""},
		{name: "存在しない", handle: "missing", want: ""},
		{name: "空ハンドル", handle: "", want: ""},
		{name: "ストア障害は未認証扱い", handle: "broken", want: ""},
		{name: "ユーザー削除済み", handle: "orphan", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := m.Resolve(context.Background(), tt.handle)
			got := ""
			if u != nil {
				got = u.ID
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.handle, got, tt.want)
			}
		})
	}
}

func TestSessionManager_Resolve_UserLoadFailure(t *testing.T) {
	repo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserFinder{
		findByIDFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	m := NewSessionManager(repo, users, SessionConfig{MaxAge: 60})
	if u := m.Resolve(context.Background(), "s"); u != nil {
		t.Errorf("Resolve = %+v, want nil", u)
	}
}

func TestSessionManager_Terminate(t *testing.T) {
	var deleted string
	repo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	m := NewSessionManager(repo, &mockUserFinder{}, SessionConfig{MaxAge: 60})

	if err := m.Terminate(context.Background(), "s1"); err != nil {
		t.Fatalf("Terminate returned error: %v", err)
	}
	if deleted != "s1" {
		t.Errorf("deleted = %q, want %q", deleted, "s1")
	}

	deleted = ""
	if err := m.Terminate(context.Background(), ""); err != nil {
		t.Fatalf("Terminate(\"\") returned error: %v", err)
	}
	if deleted != "" {
		t.Error("empty handle should not touch the store")
	}
}

func TestSessionManager_Terminate_PropagatesStoreError(t *testing.T) {
	cause := errors.New("db down")
	calls := 0
	repo := &mockSessionRepo{
		deleteByIDFn: func(context.Context, string) error {
			calls++
			return cause
		},
	}
	m := NewSessionManager(repo, &mockUserFinder{}, SessionConfig{MaxAge: 60})

	err := m.Terminate(context.Background(), "s1")
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
	if calls != 1 {
		t.Errorf("DeleteByID called %d times, want 1 (no retry)", calls)
	}
}
