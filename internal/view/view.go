// Package view はHTMLテンプレートの描画を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページテンプレート名
const (
	PageIndex     = "index"
	PageRegister  = "register"
	PageLogin     = "login"
	PageDashboard = "dashboard"
	PageNotes     = "notes"
	PageEdit      = "edit"
	PageError     = "error"
)

var pageNames = []string{PageIndex, PageRegister, PageLogin, PageDashboard, PageNotes, PageEdit, PageError}

// Page はテンプレートに渡す描画データ。
// Principal、Notice、CSRFTokenはRenderがリクエストから補完する。
type Page struct {
	Title     string
	Principal *model.User
	Notice    *middleware.Notice
	CSRFToken string

	// Errors はフォームの入力エラー一覧。
	Errors []string
	// Form は再表示するフォームの入力値。
	Form map[string]string

	Notes []*model.Note
	Note  *model.Note

	Status  int
	Message string
}

// Renderer はレイアウトと各ページを組み合わせたテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
	flash *middleware.Flash
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
// ノート本文はsanitizerで無害化してから描画する。
func NewRenderer(flash *middleware.Flash, sanitizer security.ContentSanitizerService) (*Renderer, error) {
	funcs := template.FuncMap{
		"render":  sanitizer.Render,
		"excerpt": sanitizer.Excerpt,
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
	}

	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout template: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, flash: flash}, nil
}

// Render はページを描画する。
// 描画はバッファに対して行い、失敗した場合は部分的なHTMLを返さずに500を返す。
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	t, ok := v.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	p.Principal = middleware.PrincipalFromContext(ctx)
	p.CSRFToken = middleware.CSRFTokenFromContext(ctx)
	// 保留中の通知は常に消費する。明示的な通知がある場合はそちらを優先する。
	if v.flash != nil {
		if pending := v.flash.Pop(w, r); p.Notice == nil {
			p.Notice = pending
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write response", slog.String("error", err.Error()))
	}
}

// RenderError はエラーページを描画する。middleware.ErrorPageRendererを実装する。
func (v *Renderer) RenderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	v.Render(w, r, status, PageError, Page{
		Title:   http.StatusText(status),
		Status:  status,
		Message: message,
	})
}

// StaticHandler は埋め込み静的ファイルを配信するハンドラーを返す。
// /static/ 配下にマウントする前提でプレフィックスを除去する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets not embedded: %v", err))
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

var _ middleware.ErrorPageRenderer = (*Renderer)(nil)
