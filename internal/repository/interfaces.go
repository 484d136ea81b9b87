// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/kodbank/internal/model"
)

var (
	// ErrNotFound は更新対象のレコードが存在しないことを示す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反を示す。
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateCustomerID はカスタマーIDの一意制約違反を示す。
	ErrDuplicateCustomerID = errors.New("customer id already exists")
)

// AccountReader は口座の参照操作。トランザクション内外で共通に使う。
type AccountReader interface {
	// FindByID は指定IDの口座を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByCustomerID はカスタマーIDで口座を取得する。見つからない場合はnilを返す。
	FindByCustomerID(ctx context.Context, customerID string) (*model.Account, error)
}

// BalanceMutator は残高のアトミックな増減操作。
type BalanceMutator interface {
	// Credit は残高を単一ステートメントで加算し、加算後の残高を返す。
	// 口座が存在しない場合はErrNotFoundを返す。
	Credit(ctx context.Context, id string, amount int64) (int64, error)

	// DebitIfSufficient は残高がamount以上の場合のみ単一ステートメントで減算する。
	// 残高不足の場合はok=falseを返す（エラーではない）。
	// 口座が存在しない場合はErrNotFoundを返す。
	DebitIfSufficient(ctx context.Context, id string, amount int64) (newBalance int64, ok bool, err error)
}

// AccountTx はトランザクション内で利用できる口座操作。
type AccountTx interface {
	AccountReader
	BalanceMutator

	// LockForUpdate は指定IDの口座行をID昇順でロックして返す。
	// 存在しないIDは結果に含まれない。
	LockForUpdate(ctx context.Context, ids ...string) ([]*model.Account, error)
}

// AccountRepository は口座データの永続化インターフェース。
type AccountRepository interface {
	AccountReader
	BalanceMutator

	// FindByEmail はメールアドレスで口座を取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create は口座を作成する。
	// 一意制約違反の場合はErrDuplicateEmailまたはErrDuplicateCustomerIDを返す。
	Create(ctx context.Context, account *model.Account) error

	// WithinTx はfnを単一のトランザクション内で実行する。
	// fnがエラーを返した場合はロールバックし、そのエラーをそのまま返す。
	WithinTx(ctx context.Context, fn func(tx AccountTx) error) error
}

// TokenRepository は発行済みトークンの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.SessionToken) error

	// FindByValue はトークン値で記録を取得する。期限切れでも返す。
	// 見つからない場合はnilを返す。
	FindByValue(ctx context.Context, value string) (*model.SessionToken, error)

	// DeleteByValue はトークンを削除する。存在しない場合もエラーにしない。
	DeleteByValue(ctx context.Context, value string) error
}
