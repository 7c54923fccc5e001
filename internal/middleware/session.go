// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/hitoshi/notekeeper/internal/model"
)

// SessionCookieName はセッションハンドルを運ぶCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	principalContextKey     = contextKey("principal")
	sessionHandleContextKey = contextKey("session_handle")
)

// PrincipalResolver はセッションハンドルから現在のユーザーを解決するインターフェース。
// 解決できない場合はnilを返す。
type PrincipalResolver interface {
	Resolve(ctx context.Context, handle string) *model.User
}

// SessionCookies は署名付きセッションCookieの読み書きを行う。
type SessionCookies struct {
	codec  securecookie.Codec
	config CookieConfig
}

// NewSessionCookies はSessionCookiesを生成する。
func NewSessionCookies(codec securecookie.Codec, config CookieConfig) *SessionCookies {
	return &SessionCookies{codec: codec, config: config}
}

// Set はセッションハンドルに署名してCookieに設定する。
func (s *SessionCookies) Set(w http.ResponseWriter, handle string, maxAge time.Duration) {
	value, err := s.codec.Encode(SessionCookieName, handle)
	if err != nil {
		slog.Error("failed to encode session cookie", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, s.config.newCookie(SessionCookieName, value, maxAge, true))
}

// Clear はセッションCookieを削除する。
func (s *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, s.config.expiredCookie(SessionCookieName, true))
}

// Handle はリクエストのCookieから署名を検証済みのセッションハンドルを取り出す。
// Cookieが無い、または署名が不正な場合は空文字を返す。
func (s *SessionCookies) Handle(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	var handle string
	if err := s.codec.Decode(SessionCookieName, cookie.Value, &handle); err != nil {
		return ""
	}
	return handle
}

// NewSessionMiddleware はセッションCookieから現在のユーザーを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未認証や解決失敗でもリクエストは止めず、ユーザー無しとして後段に渡す。
// アクセス制御はガードミドルウェアが行う。
func NewSessionMiddleware(resolver PrincipalResolver, cookies *SessionCookies) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := cookies.Handle(r)
			if handle == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionHandleContextKey, handle)
			if u := resolver.Resolve(ctx, handle); u != nil {
				ctx = ContextWithPrincipal(ctx, u)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから現在のユーザーを取得する。
// 未認証の場合はnilを返す。
func PrincipalFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(principalContextKey).(*model.User)
	return u
}

// ContextWithPrincipal はコンテキストに現在のユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, principalContextKey, u)
}

// SessionHandleFromContext は署名検証済みのセッションハンドルを返す。
// セッションCookieが無い場合は空文字を返す。
func SessionHandleFromContext(ctx context.Context) string {
	h, _ := ctx.Value(sessionHandleContextKey).(string)
	return h
}

// UserIDFromContext は現在のユーザーIDを返す。未認証の場合は空文字を返す。
func UserIDFromContext(ctx context.Context) string {
	if u := PrincipalFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}
