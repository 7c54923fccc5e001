// Package security はノート表示とCookieのセキュリティ機能を提供する。
package security

import (
	"html"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はノート本文を表示用に無害化するインターフェース。
// ノートは入力されたまま保存し、表示時にのみサニタイズする。
type ContentSanitizerService interface {
	// Render は本文を許可リストでサニタイズし、テンプレートにそのまま埋め込めるHTMLを返す。
	// 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em, a
	Render(raw string) template.HTML
	// Excerpt は本文からタグを除いたプレーンテキストをmaxRunes文字までに切り詰めて返す。
	Excerpt(raw string, maxRunes int) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーは生成後に変更しないため、複数goroutineから安全に使える。
type contentSanitizer struct {
	policy *bluemonday.Policy
	strip  *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
//   - script, iframe, style, on*イベント属性は許可リスト外のため除去される
//   - aタグのhrefはhttp/https/mailtoの絶対URLのみ許可し、target="_blank"とrel="noopener noreferrer"を付与する
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
		strip:  bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLを許可リストでサニタイズした文字列を返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// Render は本文をサニタイズし、template.HTMLとして返す。
func (s *contentSanitizer) Render(raw string) template.HTML {
	return template.HTML(s.policy.Sanitize(raw))
}

// Excerpt は本文からタグを除いたプレーンテキストを返す。
// maxRunesを超える場合は末尾を"…"で切り詰める。
func (s *contentSanitizer) Excerpt(raw string, maxRunes int) string {
	// StrictPolicyは実体参照をエスケープして返す。テンプレートで再度エスケープされるため戻しておく
	text := html.UnescapeString(s.strip.Sanitize(raw))
	text = strings.Join(strings.Fields(text), " ")

	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}
