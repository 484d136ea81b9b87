package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kodbank/internal/middleware"
	"github.com/hitoshi/kodbank/internal/model"
)

// --- モック定義 ---

type mockLedgerService struct {
	getBalanceFn func(ctx context.Context, accountID string) (int64, error)
	getProfileFn func(ctx context.Context, accountID string) (*model.Account, error)
	creditFn     func(ctx context.Context, accountID string, amount int64) (int64, error)
	debitFn      func(ctx context.Context, accountID string, amount int64) (int64, error)
}

func (m *mockLedgerService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if m.getBalanceFn != nil {
		return m.getBalanceFn(ctx, accountID)
	}
	return 0, nil
}

func (m *mockLedgerService) GetProfile(ctx context.Context, accountID string) (*model.Account, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, accountID)
	}
	return nil, model.NewAccountNotFoundError()
}

func (m *mockLedgerService) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if m.creditFn != nil {
		return m.creditFn(ctx, accountID, amount)
	}
	return amount, nil
}

func (m *mockLedgerService) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if m.debitFn != nil {
		return m.debitFn(ctx, accountID, amount)
	}
	return 0, nil
}

type mockTransferService struct {
	transferFn func(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error
}

func (m *mockTransferService) Transfer(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error {
	if m.transferFn != nil {
		return m.transferFn(ctx, senderAccountID, recipientCustomerID, amount)
	}
	return nil
}

var callerIdentity = model.Identity{AccountID: "account-sender", CustomerID: "SENDER01"}

// withIdentity は認証ミドルウェアを通過した状態のリクエストを作るヘルパー。
func withIdentity(r *http.Request) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), callerIdentity))
}

// --- GET /api/banking/balance ---

func TestBankingHandler_Balance(t *testing.T) {
	ledger := &mockLedgerService{
		getBalanceFn: func(ctx context.Context, accountID string) (int64, error) {
			if accountID != callerIdentity.AccountID {
				t.Errorf("accountID = %q, want %q", accountID, callerIdentity.AccountID)
			}
			return 100050, nil
		},
	}
	h := NewBankingHandler(ledger, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/banking/balance", nil))
	w := httptest.NewRecorder()

	h.Balance(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	var resp balanceResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Balance != "1000.50" {
		t.Errorf("balance = %q, want %q", resp.Balance, "1000.50")
	}
}

func TestBankingHandler_NoIdentity_Returns401(t *testing.T) {
	h := NewBankingHandler(&mockLedgerService{}, &mockTransferService{})

	handlers := map[string]http.HandlerFunc{
		"balance":      h.Balance,
		"deposit":      h.Deposit,
		"withdraw":     h.Withdraw,
		"transfer":     h.Transfer,
		"transactions": h.Transactions,
		"profile":      h.Profile,
	}

	for name, fn := range handlers {
		req := httptest.NewRequest(http.MethodPost, "/api/banking/"+name, strings.NewReader(`{"amount":1}`))
		w := httptest.NewRecorder()

		fn(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want %d", name, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}

// --- POST /api/banking/deposit ---

func TestBankingHandler_Deposit_AmountParsing(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantAmount int64
		wantCode   string
	}{
		{"数値", `{"amount":12.34}`, http.StatusOK, 1234, ""},
		{"文字列", `{"amount":"12.34"}`, http.StatusOK, 1234, ""},
		{"整数", `{"amount":500}`, http.StatusOK, 50000, ""},
		{"小数1桁", `{"amount":"0.5"}`, http.StatusOK, 50, ""},
		{"0", `{"amount":0}`, http.StatusBadRequest, 0, model.ErrCodeInvalidAmount},
		{"負数", `{"amount":-5}`, http.StatusBadRequest, 0, model.ErrCodeInvalidAmount},
		{"小数3桁", `{"amount":"1.234"}`, http.StatusBadRequest, 0, model.ErrCodeInvalidAmount},
		{"上限超過", `{"amount":"1000000000.01"}`, http.StatusBadRequest, 0, model.ErrCodeInvalidAmount},
		{"未指定", `{}`, http.StatusBadRequest, 0, model.ErrCodeInvalidAmount},
		{"null", `{"amount":null}`, http.StatusBadRequest, 0, model.ErrCodeInvalidAmount},
		{"数値でない", `{"amount":"abc"}`, http.StatusBadRequest, 0, model.ErrCodeInvalidRequest},
		{"JSON不正", `{"amount":`, http.StatusBadRequest, 0, model.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var credited int64
			ledger := &mockLedgerService{
				creditFn: func(ctx context.Context, accountID string, amount int64) (int64, error) {
					credited = amount
					return 10000 + amount, nil
				},
			}
			h := NewBankingHandler(ledger, &mockTransferService{})

			req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/deposit", strings.NewReader(tt.body)))
			w := httptest.NewRecorder()

			h.Deposit(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body=%s)", w.Result().StatusCode, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if code := decodeErrorBody(t, w).Code; code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
				if credited != 0 {
					t.Errorf("Credit should not be called, got amount %d", credited)
				}
				return
			}
			if credited != tt.wantAmount {
				t.Errorf("credited = %d, want %d", credited, tt.wantAmount)
			}
		})
	}
}

func TestBankingHandler_Deposit_ReturnsNewBalance(t *testing.T) {
	h := NewBankingHandler(&mockLedgerService{
		creditFn: func(ctx context.Context, accountID string, amount int64) (int64, error) {
			return 25075, nil
		},
	}, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/deposit", strings.NewReader(`{"amount":"50.75"}`)))
	w := httptest.NewRecorder()

	h.Deposit(w, req)

	var resp balanceUpdateResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Balance != "250.75" || resp.Message != "Deposit successful" {
		t.Errorf("response = %+v", resp)
	}
}

// --- POST /api/banking/withdraw ---

func TestBankingHandler_Withdraw_InsufficientFunds(t *testing.T) {
	h := NewBankingHandler(&mockLedgerService{
		debitFn: func(ctx context.Context, accountID string, amount int64) (int64, error) {
			return 0, model.NewInsufficientFundsError()
		},
	}, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/withdraw", strings.NewReader(`{"amount":10}`)))
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if code := decodeErrorBody(t, w).Code; code != model.ErrCodeInsufficientFunds {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInsufficientFunds)
	}
}

func TestBankingHandler_Withdraw_Success(t *testing.T) {
	var debited int64
	h := NewBankingHandler(&mockLedgerService{
		debitFn: func(ctx context.Context, accountID string, amount int64) (int64, error) {
			debited = amount
			return 900, nil
		},
	}, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/withdraw", strings.NewReader(`{"amount":"1"}`)))
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if debited != 100 {
		t.Errorf("debited = %d, want 100", debited)
	}
	var resp balanceUpdateResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Balance != "9.00" {
		t.Errorf("balance = %q, want %q", resp.Balance, "9.00")
	}
}

// --- POST /api/banking/transfer ---

func TestBankingHandler_Transfer_PassesIdentityAndAmount(t *testing.T) {
	var gotSender, gotRecipient string
	var gotAmount int64
	h := NewBankingHandler(&mockLedgerService{}, &mockTransferService{
		transferFn: func(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error {
			gotSender, gotRecipient, gotAmount = senderAccountID, recipientCustomerID, amount
			return nil
		},
	})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/transfer",
		strings.NewReader(`{"recipientCustomerId":"RECIP001","amount":"60.00"}`)))
	w := httptest.NewRecorder()

	h.Transfer(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	// 送金元はリクエストではなく識別情報から決まる
	if gotSender != callerIdentity.AccountID {
		t.Errorf("sender = %q, want %q", gotSender, callerIdentity.AccountID)
	}
	if gotRecipient != "RECIP001" || gotAmount != 6000 {
		t.Errorf("recipient/amount = (%q, %d), want (RECIP001, 6000)", gotRecipient, gotAmount)
	}
}

func TestBankingHandler_Transfer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"自分宛て", model.NewSelfTransferError(), http.StatusBadRequest, model.ErrCodeSelfTransfer},
		{"送金先なし", model.NewRecipientNotFoundError("NOPE0000"), http.StatusBadRequest, model.ErrCodeRecipientNotFound},
		{"残高不足", model.NewInsufficientFundsError(), http.StatusBadRequest, model.ErrCodeInsufficientFunds},
		{"送金元なし", model.NewAccountNotFoundError(), http.StatusNotFound, model.ErrCodeAccountNotFound},
		{"DB障害", errors.New("transfer transaction failed: driver: bad connection"), http.StatusInternalServerError, model.ErrCodePersistenceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBankingHandler(&mockLedgerService{}, &mockTransferService{
				transferFn: func(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error {
					return tt.err
				},
			})

			req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/transfer",
				strings.NewReader(`{"recipientCustomerId":"RECIP001","amount":1}`)))
			w := httptest.NewRecorder()

			h.Transfer(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
			if code := decodeErrorBody(t, w).Code; code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestBankingHandler_Transfer_InvalidAmount_DoesNotCallService(t *testing.T) {
	called := false
	h := NewBankingHandler(&mockLedgerService{}, &mockTransferService{
		transferFn: func(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error {
			called = true
			return nil
		},
	})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/banking/transfer",
		strings.NewReader(`{"recipientCustomerId":"RECIP001","amount":-1}`)))
	w := httptest.NewRecorder()

	h.Transfer(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if called {
		t.Error("Transfer should not be called for invalid amount")
	}
}

// --- GET /api/banking/transactions ---

func TestBankingHandler_Transactions_ReturnsEmptyList(t *testing.T) {
	h := NewBankingHandler(&mockLedgerService{}, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/banking/transactions", nil))
	w := httptest.NewRecorder()

	h.Transactions(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	// nullではなく空配列であること
	if got := strings.TrimSpace(w.Body.String()); got != `{"transactions":[]}` {
		t.Errorf("body = %s, want %s", got, `{"transactions":[]}`)
	}
}

// --- GET /api/banking/profile ---

func TestBankingHandler_Profile(t *testing.T) {
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	h := NewBankingHandler(&mockLedgerService{
		getProfileFn: func(ctx context.Context, accountID string) (*model.Account, error) {
			return &model.Account{
				ID:           accountID,
				CustomerID:   "SENDER01",
				Name:         "Alice",
				Email:        "alice@example.com",
				Phone:        "090-0000-0000",
				PasswordHash: "$2a$10$hash",
				Balance:      500,
				CreatedAt:    createdAt,
			}, nil
		},
	}, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/banking/profile", nil))
	w := httptest.NewRecorder()

	h.Profile(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if strings.Contains(w.Body.String(), "hash") {
		t.Errorf("profile must not expose password hash: %s", w.Body.String())
	}

	var resp profileResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	want := profileBody{
		CustomerName: "Alice",
		CustomerID:   "SENDER01",
		PhoneNumber:  "090-0000-0000",
		Email:        "alice@example.com",
		CreatedAt:    createdAt,
	}
	if !resp.Profile.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", resp.Profile.CreatedAt, want.CreatedAt)
	}
	resp.Profile.CreatedAt = want.CreatedAt
	if resp.Profile != want {
		t.Errorf("profile = %+v, want %+v", resp.Profile, want)
	}
}

func TestBankingHandler_Profile_AccountNotFound(t *testing.T) {
	h := NewBankingHandler(&mockLedgerService{}, &mockTransferService{})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/banking/profile", nil))
	w := httptest.NewRecorder()

	h.Profile(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
