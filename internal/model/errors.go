// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, banking, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はコードが一致するAPIErrorを同一エラーとみなす。
// errors.Is(err, model.ErrInsufficientFunds) のような比較に使う。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	// 認証
	ErrCodeMissingCredential  = "MISSING_CREDENTIAL"
	ErrCodeInvalidCredential  = "INVALID_CREDENTIAL"
	ErrCodeExpiredOrRevoked   = "EXPIRED_OR_REVOKED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// 業務ルール
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeSelfTransfer       = "SELF_TRANSFER"
	ErrCodeRecipientNotFound  = "RECIPIENT_NOT_FOUND"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"

	// インフラ
	ErrCodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	ErrCodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
)

// 比較用のセンチネル。errors.Isはコードのみで比較する。
var (
	ErrMissingCredential = &APIError{Code: ErrCodeMissingCredential}
	ErrInvalidCredential = &APIError{Code: ErrCodeInvalidCredential}
	ErrExpiredOrRevoked  = &APIError{Code: ErrCodeExpiredOrRevoked}
	ErrInvalidAmount     = &APIError{Code: ErrCodeInvalidAmount}
	ErrSelfTransfer      = &APIError{Code: ErrCodeSelfTransfer}
	ErrRecipientNotFound = &APIError{Code: ErrCodeRecipientNotFound}
	ErrInsufficientFunds = &APIError{Code: ErrCodeInsufficientFunds}
	ErrAccountNotFound   = &APIError{Code: ErrCodeAccountNotFound}
)

// NewMissingCredentialError は認証情報が無い場合のエラーを生成する。
func NewMissingCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredential,
		Message:  "アクセストークンが必要です。",
		Category: "auth",
		Action:   "Authorization: Bearer <token> ヘッダーを付与してください。",
	}
}

// NewInvalidCredentialError は署名検証に失敗した場合のエラーを生成する。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "アクセストークンが不正です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewExpiredOrRevokedError はトークンが期限切れまたは失効済みの場合のエラーを生成する。
func NewExpiredOrRevokedError() *APIError {
	return &APIError{
		Code:     ErrCodeExpiredOrRevoked,
		Message:  "アクセストークンの有効期限が切れているか、無効化されています。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError はログイン時のメールアドレスまたはパスワード不一致エラーを生成する。
// どちらが誤っているかは明かさない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidAmountError は金額が不正な場合のエラーを生成する。
func NewInvalidAmountError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  fmt.Sprintf("金額が不正です: %s", reason),
		Category: "validation",
		Action:   "0より大きい金額を小数点以下2桁以内で指定してください。",
	}
}

// NewSelfTransferError は自分自身への送金エラーを生成する。
func NewSelfTransferError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfTransfer,
		Message:  "自分自身の口座には送金できません。",
		Category: "banking",
		Action:   "送金先のカスタマーIDを確認してください。",
	}
}

// NewRecipientNotFoundError は送金先が存在しない場合のエラーを生成する。
func NewRecipientNotFoundError(customerID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipientNotFound,
		Message:  fmt.Sprintf("送金先が見つかりません: %s", customerID),
		Category: "banking",
		Action:   "送金先のカスタマーIDを確認してください。",
	}
}

// NewInsufficientFundsError は残高不足エラーを生成する。
func NewInsufficientFundsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientFunds,
		Message:  "残高が不足しています。",
		Category: "banking",
		Action:   "金額を減らすか、入金してから再度お試しください。",
	}
}

// NewAccountNotFoundError は口座が見つからない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "口座が見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmailAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewPersistenceUnavailableError は永続化層が利用できない場合の汎用エラーを生成する。
// 内部の詳細はメッセージに含めない。
func NewPersistenceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodePersistenceUnavailable,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
