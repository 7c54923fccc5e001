package middleware

import (
	"log/slog"
	"net/http"
)

// ErrorPageRenderer はエラーページをHTMLで描画するインターフェース。
type ErrorPageRenderer interface {
	RenderError(w http.ResponseWriter, r *http.Request, status int, message string)
}

// WriteErrorPage はエラーページを書き込む。rendererがnilの場合はプレーンテキストで返す。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteErrorPage(w http.ResponseWriter, r *http.Request, renderer ErrorPageRenderer, status int, message string) {
	if renderer == nil {
		http.Error(w, message, status)
		return
	}
	renderer.RenderError(w, r, status, message)
}

// WriteInternalServerError は内部サーバーエラーのページを書き込む。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request, renderer ErrorPageRenderer, err error) {
	if err != nil {
		slog.Error("internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	WriteErrorPage(w, r, renderer, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}
