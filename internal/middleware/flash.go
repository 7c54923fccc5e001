package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	flashCookieName = "flash"
	flashMaxAge     = 5 * time.Minute
)

// NoticeKind は通知の種別。
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice は次のリクエストで一度だけ表示する通知。
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// SuccessNotice は成功通知を生成する。
func SuccessNotice(message string) Notice {
	return Notice{Kind: NoticeSuccess, Message: message}
}

// ErrorNotice はエラー通知を生成する。
func ErrorNotice(message string) Notice {
	return Notice{Kind: NoticeError, Message: message}
}

// Flash は署名付きCookieに通知を1件だけ保持する。
// 新しい通知を設定すると未表示の通知は置き換えられる。
type Flash struct {
	codec  securecookie.Codec
	config CookieConfig
}

// NewFlash はFlashを生成する。
func NewFlash(codec securecookie.Codec, config CookieConfig) *Flash {
	return &Flash{codec: codec, config: config}
}

// Set は通知をCookieに設定する。
func (f *Flash) Set(w http.ResponseWriter, n Notice) {
	value, err := f.codec.Encode(flashCookieName, n)
	if err != nil {
		slog.Error("failed to encode flash notice", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, f.config.newCookie(flashCookieName, value, flashMaxAge, true))
}

// Pop はリクエストの通知を取り出し、Cookieを削除する。
// 通知が無い、または改ざんされている場合はnilを返す。
func (f *Flash) Pop(w http.ResponseWriter, r *http.Request) *Notice {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, f.config.expiredCookie(flashCookieName, true))

	var n Notice
	if err := f.codec.Decode(flashCookieName, cookie.Value, &n); err != nil || n.Message == "" {
		return nil
	}
	return &n
}

// Redirect は通知を設定してから302でリダイレクトする。
func (f *Flash) Redirect(w http.ResponseWriter, r *http.Request, to string, n Notice) {
	f.Set(w, n)
	http.Redirect(w, r, to, http.StatusFound)
}
