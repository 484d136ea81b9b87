// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizer は登録フォームなど利用者が自由入力するテキストから
// マークアップを取り除き、プレーンテキストとして保存できる形にする。
// bluemondayのStrictPolicyを使用し、すべてのタグを除去する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由入力テキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Clean はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// maxRunesを超える部分は切り捨てる。0以下の場合は制限しない。
	Clean(input string, maxRunes int) string
}

// InputSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type InputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerを生成する。
func NewInputSanitizer() *InputSanitizer {
	return &InputSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はTextSanitizer.Cleanを実装する。
func (s *InputSanitizer) Clean(input string, maxRunes int) string {
	if input == "" {
		return ""
	}

	// StrictPolicyは残したテキストをHTMLエスケープするため、プレーンテキストに戻す
	cleaned := html.UnescapeString(s.policy.Sanitize(input))
	cleaned = strings.TrimSpace(cleaned)

	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		cleaned = string([]rune(cleaned)[:maxRunes])
	}
	return cleaned
}

// compile-time interface check
var _ TextSanitizer = (*InputSanitizer)(nil)
