package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/notekeeper/internal/auth"
	"github.com/hitoshi/notekeeper/internal/metrics"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/note"
	"github.com/hitoshi/notekeeper/internal/repository"
	"github.com/hitoshi/notekeeper/internal/security"
	"github.com/hitoshi/notekeeper/internal/user"
	"github.com/hitoshi/notekeeper/internal/view"
)

var errStoreDown = errors.New("store unavailable")

// --- インメモリリポジトリ ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Update(ctx context.Context, u *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return nil, nil
	}
	c := *u
	m.users[u.ID] = &c
	return &c, nil
}

type memNoteRepo struct {
	mu    sync.Mutex
	notes map[string]*model.Note
	order map[string]int
	seq   int
	err   error
}

func newMemNoteRepo() *memNoteRepo {
	return &memNoteRepo{notes: make(map[string]*model.Note), order: make(map[string]int)}
}

func (m *memNoteRepo) Create(ctx context.Context, n *model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.seq++
	c := *n
	m.notes[n.ID] = &c
	m.order[n.ID] = m.seq
	return nil
}

func (m *memNoteRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.Note
	for _, n := range m.notes {
		if n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] < m.order[out[j].ID] })
	return out, nil
}

func (m *memNoteRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if n, ok := m.notes[id]; ok && n.UserID == userID {
		c := *n
		return &c, nil
	}
	return nil, nil
}

func (m *memNoteRepo) UpdateOwned(ctx context.Context, n *model.Note) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	existing, ok := m.notes[n.ID]
	if !ok || existing.UserID != n.UserID {
		return nil, nil
	}
	existing.Title = n.Title
	existing.Content = n.Content
	existing.UpdatedAt = n.UpdatedAt
	c := *existing
	return &c, nil
}

func (m *memNoteRepo) DeleteOwned(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if n, ok := m.notes[id]; ok && n.UserID == userID {
		delete(m.notes, id)
		return true, nil
	}
	return false, nil
}

func (m *memNoteRepo) byTitle(title string) *model.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.Title == title {
			c := *n
			return &c
		}
	}
	return nil
}

func (m *memNoteRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

type memSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*model.Session
	findErr   error
	deleteErr error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Create(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.sessions[s.ID] = &c
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if s, ok := m.sessions[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (m *memSessionRepo) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionRepo) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *memSessionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テスト用アプリケーション ---

type testApp struct {
	router   http.Handler
	users    *memUserRepo
	notes    *memNoteRepo
	sessions *memSessionRepo
	health   *mockHealthChecker
	cookies  *middleware.SessionCookies
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	users := newMemUserRepo()
	notes := newMemNoteRepo()
	sessions := newMemSessionRepo()
	health := &mockHealthChecker{}

	userSvc := user.NewService(users, sessions, bcrypt.MinCost)
	noteSvc := note.NewService(notes)
	sessionMgr := auth.NewSessionManager(sessions, userSvc, auth.SessionConfig{MaxAge: 3600})

	codec := security.NewCookieCodec("handler-test-secret")
	cookieCfg := middleware.CookieConfig{}
	flash := middleware.NewFlash(codec, cookieCfg)
	sessionCookies := middleware.NewSessionCookies(codec, cookieCfg)
	renderer, err := view.NewRenderer(flash, security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	reg := prometheus.NewRegistry()

	router := NewRouter(&RouterDeps{
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Metrics:        metrics.NewCollector(reg),
		Gatherer:       reg,
		Health:         health,
		Renderer:       renderer,
		Cookies:        cookieCfg,
		SessionCookies: sessionCookies,
		Flash:          flash,
		Resolver:       sessionMgr,
		Users:          userSvc,
		Authenticator:  auth.NewAuthenticator(userSvc),
		Sessions:       sessionMgr,
		Notes:          noteSvc,
	})

	return &testApp{
		router:   router,
		users:    users,
		notes:    notes,
		sessions: sessions,
		health:   health,
		cookies:  sessionCookies,
	}
}

// --- ブラウザ相当のクライアント ---

const testCSRFToken = "test-csrf-token"

// browser はCookieを保持しながらルーターにリクエストを送る。
type browser struct {
	t        *testing.T
	handler  http.Handler
	sessions *middleware.SessionCookies
	cookies  map[string]*http.Cookie
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	return &browser{
		t:        t,
		handler:  a.router,
		sessions: a.cookies,
		cookies: map[string]*http.Cookie{
			"csrf_token": {Name: "csrf_token", Value: testCSRFToken},
		},
	}
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(http.MethodGet, path, nil)
}

// post はCSRFトークンを付与してフォームを送信する。
func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRFToken)
	return b.do(http.MethodPost, path, form)
}

// follow はリダイレクトを検証し、遷移先をGETする。
func (b *browser) follow(w *httptest.ResponseRecorder, wantLocation string) *httptest.ResponseRecorder {
	b.t.Helper()
	if w.Code != http.StatusFound {
		b.t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusFound, w.Body.String())
	}
	loc := w.Header().Get("Location")
	if loc != wantLocation {
		b.t.Fatalf("Location = %q, want %q", loc, wantLocation)
	}
	return b.get(loc)
}

func (b *browser) sessionHandle() string {
	c, ok := b.cookies[middleware.SessionCookieName]
	if !ok {
		return ""
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	return b.sessions.Handle(req)
}

// register はユーザーを登録する。
func (b *browser) register(username, email, password string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.post("/register", url.Values{
		"username":  {username},
		"email":     {email},
		"password":  {password},
		"password2": {password},
	})
}

// login はログインしてダッシュボードへのリダイレクトを検証する。
func (b *browser) login(email, password string) {
	b.t.Helper()
	w := b.post("/login", url.Values{"email": {email}, "password": {password}})
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/dashboard" {
		b.t.Fatalf("login failed: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
}

// signUp は登録とログインを続けて行う。
func (a *testApp) signUp(t *testing.T, username, email, password string) *browser {
	t.Helper()
	b := a.newBrowser(t)
	if w := b.register(username, email, password); w.Code != http.StatusFound {
		t.Fatalf("register failed: status=%d body=%s", w.Code, w.Body.String())
	}
	b.login(email, password)
	return b
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("body does not contain %q\nbody: %s", want, body)
	}
}

func assertNotContains(t *testing.T, body, unwanted string) {
	t.Helper()
	if strings.Contains(body, unwanted) {
		t.Errorf("body unexpectedly contains %q", unwanted)
	}
}
