// Package model はドメインモデルを定義する。
package model

import "time"

// SessionToken はログイン時に発行された認証トークンの記録を表す。
// Valueは署名付きクレデンシャル文字列そのもの。1口座で複数保持できる。
type SessionToken struct {
	Value     string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻においてトークンが期限切れかどうかを返す。
func (t *SessionToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
