package middleware

import (
	"net/http"

	"github.com/hitoshi/notekeeper/internal/model"
)

// Decision はガードの判定結果。
// 拒否の場合はリダイレクト先と表示する通知を持つ。
type Decision struct {
	Allow      bool
	RedirectTo string
	Notice     Notice
}

// GuardFunc は現在のユーザーからアクセス可否を判定する。
type GuardFunc func(principal *model.User) Decision

// RequireAuthenticated は認証済みユーザーのみを通す。
func RequireAuthenticated(principal *model.User) Decision {
	if principal != nil {
		return Decision{Allow: true}
	}
	return Decision{
		RedirectTo: "/login",
		Notice:     ErrorNotice("Please log in to view that resource"),
	}
}

// ForwardIfAuthenticated は未認証ユーザーのみを通し、認証済みならダッシュボードへ送る。
func ForwardIfAuthenticated(principal *model.User) Decision {
	if principal == nil {
		return Decision{Allow: true}
	}
	return Decision{
		RedirectTo: "/dashboard",
		Notice:     SuccessNotice("You are already logged in"),
	}
}

// NewGuardMiddleware はガード判定を後段ハンドラーの前に実行するミドルウェアを返す。
// 拒否時は通知を1件設定してリダイレクトし、後段は実行しない。
func NewGuardMiddleware(guard GuardFunc, flash *Flash) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := guard(PrincipalFromContext(r.Context()))
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}
			flash.Redirect(w, r, d.RedirectTo, d.Notice)
		})
	}
}
