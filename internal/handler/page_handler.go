package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/view"
)

// PageHandler はランディング・ダッシュボード・ヘルスチェックのHTTPハンドラー。
type PageHandler struct {
	notes    NoteServiceInterface
	renderer PageRenderer
	health   HealthChecker
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(notes NoteServiceInterface, renderer PageRenderer, health HealthChecker) *PageHandler {
	return &PageHandler{
		notes:    notes,
		renderer: renderer,
		health:   health,
	}
}

// Index はランディングページを表示する。認証状態は問わない。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, view.PageIndex, view.Page{})
}

// Dashboard はログインユーザーのダッシュボードを表示する。
// ノートの取得に失敗しても画面は表示し、通知で知らせる。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	page := view.Page{Title: "Dashboard"}

	notes, err := h.notes.ListByOwner(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		slog.Warn("failed to load notes for dashboard", slog.String("error", err.Error()))
		n := middleware.ErrorNotice(appErrorMessage(err, "Error retrieving notes"))
		page.Notice = &n
	}
	page.Notes = notes

	h.renderer.Render(w, r, http.StatusOK, view.PageDashboard, page)
}

// Health はDBへの疎通を確認する。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// NotFound は404ページを表示する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorPage(w, r, h.renderer, http.StatusNotFound, "Page not found")
}

// MethodNotAllowed は405ページを表示する。
func (h *PageHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorPage(w, r, h.renderer, http.StatusMethodNotAllowed, "Method not allowed")
}
