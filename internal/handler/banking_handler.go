package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/money"
	"github.com/shopspring/decimal"
)

// LedgerServiceInterface は残高照会と入出金に必要なサービスインターフェース。
type LedgerServiceInterface interface {
	GetBalance(ctx context.Context, accountID string) (int64, error)
	GetProfile(ctx context.Context, accountID string) (*model.Account, error)
	Credit(ctx context.Context, accountID string, amount int64) (int64, error)
	Debit(ctx context.Context, accountID string, amount int64) (int64, error)
}

// TransferServiceInterface は送金に必要なサービスインターフェース。
type TransferServiceInterface interface {
	Transfer(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error
}

// BankingHandler は認証済み口座向けのHTTPハンドラー。
// 操作対象の口座は常にトークンの識別情報から決まり、リクエストでは指定できない。
type BankingHandler struct {
	ledger    LedgerServiceInterface
	transfers TransferServiceInterface
}

// NewBankingHandler はBankingHandlerを生成する。
func NewBankingHandler(ledger LedgerServiceInterface, transfers TransferServiceInterface) *BankingHandler {
	return &BankingHandler{
		ledger:    ledger,
		transfers: transfers,
	}
}

type amountRequest struct {
	Amount decimal.NullDecimal `json:"amount"`
}

type transferRequest struct {
	RecipientCustomerID string              `json:"recipientCustomerId"`
	Amount              decimal.NullDecimal `json:"amount"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type balanceUpdateResponse struct {
	Message string `json:"message"`
	Balance string `json:"balance"`
}

type transactionsResponse struct {
	Transactions []struct{} `json:"transactions"`
}

type profileBody struct {
	CustomerName string    `json:"customerName"`
	CustomerID   string    `json:"customerId"`
	PhoneNumber  string    `json:"phoneNumber"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"createdAt"`
}

type profileResponse struct {
	Profile profileBody `json:"profile"`
}

// Balance は残高を返す。
// GET /api/banking/balance
func (h *BankingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), identity.AccountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Balance: money.Format(balance)})
}

// Deposit は入金する。
// POST /api/banking/deposit
func (h *BankingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	amount, apiErr := h.decodeAmount(w, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	balance, err := h.ledger.Credit(r.Context(), identity.AccountID, amount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceUpdateResponse{
		Message: "Deposit successful",
		Balance: money.Format(balance),
	})
}

// Withdraw は出金する。残高が不足する場合は何も変更しない。
// POST /api/banking/withdraw
func (h *BankingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	amount, apiErr := h.decodeAmount(w, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	balance, err := h.ledger.Debit(r.Context(), identity.AccountID, amount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceUpdateResponse{
		Message: "Withdrawal successful",
		Balance: money.Format(balance),
	})
}

// Transfer はカスタマーIDで指定した口座へ送金する。
// POST /api/banking/transfer
func (h *BankingHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	amount, apiErr := parseAmount(req.Amount)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.transfers.Transfer(r.Context(), identity.AccountID, req.RecipientCustomerID, amount); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Transfer successful"})
}

// Transactions は取引履歴を返す。履歴は保存していないため常に空。
// GET /api/banking/transactions
func (h *BankingHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityOrUnauthorized(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: []struct{}{}})
}

// Profile は口座のプロフィールを返す。
// GET /api/banking/profile
func (h *BankingHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.GetProfile(r.Context(), identity.AccountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Profile: profileBody{
		CustomerName: account.Name,
		CustomerID:   account.CustomerID,
		PhoneNumber:  account.Phone,
		Email:        account.Email,
		CreatedAt:    account.CreatedAt.UTC(),
	}})
}

func (h *BankingHandler) decodeAmount(w http.ResponseWriter, r *http.Request) (int64, *model.APIError) {
	var req amountRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		return 0, apiErr
	}
	return parseAmount(req.Amount)
}
