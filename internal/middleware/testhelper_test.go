package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/security"
)

// --- モック定義 ---

type mockResolver struct {
	resolveFn func(ctx context.Context, handle string) *model.User
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, handle string) *model.User {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, handle)
	}
	return nil
}

const testSecret = "test-session-secret"

func newTestCodec() *securecookie.SecureCookie {
	return newTestCodecWith(testSecret)
}

func newTestCodecWith(secret string) *securecookie.SecureCookie {
	return security.NewCookieCodec(secret)
}

// encodeCookie は指定Cookie名で値を署名済みの文字列にする。
func encodeCookie(t *testing.T, codec securecookie.Codec, name string, value any) string {
	t.Helper()
	encoded, err := codec.Encode(name, value)
	if err != nil {
		t.Fatalf("failed to encode cookie %q: %v", name, err)
	}
	return encoded
}

// responseCookie はレスポンスから指定名のCookieを取り出す。
func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
