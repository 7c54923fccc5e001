package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/security"
)

func newTestRenderer(t *testing.T) (*Renderer, *middleware.Flash) {
	t.Helper()
	flash := middleware.NewFlash(security.NewCookieCodec("test-secret"), middleware.CookieConfig{})
	r, err := NewRenderer(flash, security.NewContentSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r, flash
}

func TestNewRenderer_ParsesAllPages(t *testing.T) {
	r, _ := newTestRenderer(t)
	for _, name := range pageNames {
		if _, ok := r.pages[name]; !ok {
			t.Errorf("page %q not parsed", name)
		}
	}
}

func TestRender_AnonymousLanding(t *testing.T) {
	r, _ := newTestRenderer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Render(w, req, http.StatusOK, PageIndex, Page{})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `href="/login"`) {
		t.Error("anonymous landing page should link to login")
	}
	if strings.Contains(body, `action="/logout"`) {
		t.Error("anonymous landing page should not show logout")
	}
}

func TestRender_PrincipalAndCSRFToken(t *testing.T) {
	r, _ := newTestRenderer(t)

	var req *http.Request
	csrf := middleware.NewCSRFMiddleware(middleware.CookieConfig{}, r)
	w := httptest.NewRecorder()
	csrf(http.HandlerFunc(func(w http.ResponseWriter, rr *http.Request) {
		req = rr
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	req = req.WithContext(middleware.ContextWithPrincipal(req.Context(), &model.User{ID: "u1", Username: "alice"}))
	token := middleware.CSRFTokenFromContext(req.Context())
	if token == "" {
		t.Fatal("expected CSRF token in context")
	}

	out := httptest.NewRecorder()
	r.Render(out, req, http.StatusOK, PageDashboard, Page{Title: "Dashboard"})

	body := out.Body.String()
	if !strings.Contains(body, "Welcome, alice") {
		t.Errorf("body does not greet principal: %s", body)
	}
	if !strings.Contains(body, `value="`+token+`"`) {
		t.Error("CSRF token not embedded in logout form")
	}
}

func TestRender_PopsFlashNotice(t *testing.T) {
	r, flash := newTestRenderer(t)

	set := httptest.NewRecorder()
	flash.Set(set, middleware.SuccessNotice("You are logged out"))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	for _, c := range set.Result().Cookies() {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.Render(w, req, http.StatusOK, PageLogin, Page{Title: "Login"})

	body := w.Body.String()
	if !strings.Contains(body, "You are logged out") || !strings.Contains(body, "alert-success") {
		t.Errorf("notice not rendered: %s", body)
	}
}

func TestRender_ExplicitNoticeStillConsumesFlash(t *testing.T) {
	r, flash := newTestRenderer(t)

	set := httptest.NewRecorder()
	flash.Set(set, middleware.ErrorNotice("Error retrieving notes"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(middleware.ContextWithPrincipal(req.Context(), &model.User{ID: "u1", Username: "alice"}))
	for _, c := range set.Result().Cookies() {
		req.AddCookie(c)
	}

	explicit := middleware.ErrorNotice("Store is down")
	w := httptest.NewRecorder()
	r.Render(w, req, http.StatusOK, PageDashboard, Page{Title: "Dashboard", Notice: &explicit})

	body := w.Body.String()
	if !strings.Contains(body, "Store is down") {
		t.Errorf("explicit notice not rendered: %s", body)
	}
	if strings.Contains(body, "Error retrieving notes") {
		t.Error("pending notice rendered alongside explicit notice")
	}

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "flash" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("pending flash cookie was not cleared")
	}
}

func TestRender_RegisterKeepsFormValuesAndErrors(t *testing.T) {
	r, _ := newTestRenderer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	r.Render(w, req, http.StatusOK, PageRegister, Page{
		Errors: []string{"Passwords do not match"},
		Form:   map[string]string{"username": "alice", "email": "a@x.io"},
	})

	body := w.Body.String()
	for _, want := range []string{"Passwords do not match", `value="alice"`, `value="a@x.io"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRender_NotesSanitizesContent(t *testing.T) {
	r, _ := newTestRenderer(t)

	now := time.Now()
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req = req.WithContext(middleware.ContextWithPrincipal(req.Context(), &model.User{ID: "u1", Username: "alice"}))

	w := httptest.NewRecorder()
	r.Render(w, req, http.StatusOK, PageNotes, Page{
		Notes: []*model.Note{
			{ID: "n1", Title: "<b>T</b>", Content: `hello<script>alert(1)</script>`, CreatedAt: now, UpdatedAt: now},
		},
	})

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("script tag rendered unsanitized")
	}
	if strings.Contains(body, "<b>T</b>") {
		t.Error("title must be escaped")
	}
	if !strings.Contains(body, `action="/notes/delete/n1"`) {
		t.Error("delete form missing")
	}
}

func TestRenderError(t *testing.T) {
	r, _ := newTestRenderer(t)

	w := httptest.NewRecorder()
	r.RenderError(w, httptest.NewRequest(http.MethodGet, "/logout", nil), http.StatusInternalServerError, "Something went wrong. Please try again later.")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "Something went wrong") {
		t.Error("error message not rendered")
	}
}

func TestRender_UnknownPage_Returns500(t *testing.T) {
	r, _ := newTestRenderer(t)

	w := httptest.NewRecorder()
	r.Render(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "missing", Page{})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestStaticHandler_ServesCSS(t *testing.T) {
	w := httptest.NewRecorder()
	StaticHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "pre-wrap") {
		t.Error("unexpected stylesheet content")
	}

	w = httptest.NewRecorder()
	StaticHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/nope.css", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
