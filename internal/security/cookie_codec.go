package security

import (
	"github.com/gorilla/securecookie"
)

// NewCookieCodec は署名鍵からCookie値のコーデックを生成する。
// 値はJSONでエンコードされ、Cookie名と発行時刻を含めてHMAC-SHA256で署名される。
// 有効期限はCookie自体とセッションストアで管理するため、コーデック側では検査しない。
func NewCookieCodec(secret string) *securecookie.SecureCookie {
	codec := securecookie.New([]byte(secret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(0)
	return codec
}
