// Package model はドメインモデルを定義する。
package model

import "time"

// Account は銀行口座（兼ユーザー）を表す。
// Balanceは最小通貨単位（セント）で保持する。
type Account struct {
	ID           string
	CustomerID   string // 外部公開用の識別子。送金先の指定に使う
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Balance      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は検証済みの認証情報から取り出した呼び出し元の識別情報。
// 認証ゲートを通過したリクエストのコンテキストにのみ格納される。
type Identity struct {
	AccountID  string
	CustomerID string
}

// TransferIntent は送金の意図を表す。永続化はしない。
type TransferIntent struct {
	SenderAccountID     string
	RecipientCustomerID string
	Amount              int64
}

// TransferCompletedEvent はコミット済みの送金を外部に通知するイベント。
type TransferCompletedEvent struct {
	TransferID          string    `json:"transfer_id"`
	SenderAccountID     string    `json:"sender_account_id"`
	SenderCustomerID    string    `json:"sender_customer_id"`
	RecipientAccountID  string    `json:"recipient_account_id"`
	RecipientCustomerID string    `json:"recipient_customer_id"`
	Amount              int64     `json:"amount"`
	OccurredAt          time.Time `json:"occurred_at"`
}
