// Package security はバックエンドから受け取ったプロフィール値の無害化を提供する。
//
// ProfileSanitizer はユーザーメタデータ由来の表示名とアバターURLを正規化する。
// 表示名はbluemondayのStrictPolicyで全てのマークアップを除去し、
// アバターURLはhttp/httpsの絶対URLのみを通過させる。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はプロフィール値のサニタイズ機能。
// 内部のポリシーはスレッドセーフであり、複数goroutineから共有できる。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// DisplayName はHTMLタグを除去したプレーンテキストの表示名を返す。
// StrictPolicyがエスケープした文字実体参照は元の文字に戻す。
func (s *ProfileSanitizer) DisplayName(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// AvatarURL はhttp/httpsの絶対URLであればそのまま返し、それ以外は空文字列を返す。
func (s *ProfileSanitizer) AvatarURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return ""
	}
	return raw
}
