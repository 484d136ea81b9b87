package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kodbank/internal/auth"
	"github.com/hitoshi/kodbank/internal/middleware"
	"github.com/hitoshi/kodbank/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.Account, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	logoutFn   func(ctx context.Context, tokenValue string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.Account{ID: "account-1", CustomerID: "ABCD1234"}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, tokenValue string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, tokenValue)
	}
	return nil
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- POST /api/auth/register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.Account, error) {
			got = in
			return &model.Account{ID: "account-1", CustomerID: "K7Q2M9XA"}, nil
		},
	}
	h := NewAuthHandler(svc)

	body := `{"customerName":"Alice","phoneNumber":"090-0000-0000","email":"alice@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	want := auth.RegisterInput{Name: "Alice", Phone: "090-0000-0000", Email: "alice@example.com", Password: "password123"}
	if got != want {
		t.Errorf("RegisterInput = %+v, want %+v", got, want)
	}

	var resp registerResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CustomerID != "K7Q2M9XA" {
		t.Errorf("customerId = %q, want %q", resp.CustomerID, "K7Q2M9XA")
	}
	if resp.Message != "Registration successful" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	called := false
	h := NewAuthHandler(&mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.Account, error) {
			called = true
			return nil, nil
		},
	})

	for _, body := range []string{"", "{", "[1,2]"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.Register(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want %d", body, w.Result().StatusCode, http.StatusBadRequest)
		}
		if code := decodeErrorBody(t, w).Code; code != model.ErrCodeInvalidRequest {
			t.Errorf("body %q: code = %q, want %q", body, code, model.ErrCodeInvalidRequest)
		}
	}
	if called {
		t.Error("service should not be called for invalid JSON")
	}
}

func TestAuthHandler_Register_TooLargeBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	body := `{"customerName":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Register_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"メールアドレス重複", model.NewEmailAlreadyExistsError(), http.StatusBadRequest, model.ErrCodeEmailAlreadyExists},
		{"入力不正", model.NewInvalidRequestError("氏名を入力してください"), http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"DB障害", fmt.Errorf("failed to create account: %w", errors.New("pq: connection refused")), http.StatusInternalServerError, model.ErrCodePersistenceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*model.Account, error) {
					return nil, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
				strings.NewReader(`{"customerName":"A","email":"a@example.com","password":"password123"}`))
			w := httptest.NewRecorder()

			h.Register(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if strings.Contains(body.Message, "pq:") {
				t.Errorf("internal error leaked: %q", body.Message)
			}
		})
	}
}

// --- POST /api/auth/login ---

func TestAuthHandler_Login_Success(t *testing.T) {
	expiresAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			if email != "alice@example.com" || password != "password123" {
				t.Errorf("login args = (%q, %q)", email, password)
			}
			return &auth.LoginResult{
				Token: &model.SessionToken{Value: "signed-token", AccountID: "account-1", ExpiresAt: expiresAt},
				Account: &model.Account{
					ID:         "account-1",
					CustomerID: "K7Q2M9XA",
					Name:       "Alice",
					Email:      "alice@example.com",
					Balance:    12345,
				},
			}, nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"alice@example.com","password":"password123"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp loginResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "signed-token" {
		t.Errorf("token = %q, want %q", resp.Token, "signed-token")
	}
	if !resp.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expiresAt = %v, want %v", resp.ExpiresAt, expiresAt)
	}
	wantUser := userSummary{CustomerName: "Alice", CustomerID: "K7Q2M9XA", Email: "alice@example.com", Balance: "123.45"}
	if resp.User != wantUser {
		t.Errorf("user = %+v, want %+v", resp.User, wantUser)
	}
}

func TestAuthHandler_Login_ResponseDoesNotExposePasswordHash(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return &auth.LoginResult{
				Token:   &model.SessionToken{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)},
				Account: &model.Account{ID: "account-1", PasswordHash: "$2a$10$secret-hash"},
			}, nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"x"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if strings.Contains(w.Body.String(), "secret-hash") {
		t.Errorf("password hash leaked: %s", w.Body.String())
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"wrong"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if code := decodeErrorBody(t, w).Code; code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidCredentials)
	}
}

// --- POST /api/auth/logout ---

func TestAuthHandler_Logout_RevokesBearerToken(t *testing.T) {
	var revoked string
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, tokenValue string) error {
			revoked = tokenValue
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer signed-token")
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if revoked != "signed-token" {
		t.Errorf("revoked = %q, want %q", revoked, "signed-token")
	}
}

func TestAuthHandler_Logout_WithoutToken_Returns200(t *testing.T) {
	var revoked = "not-called"
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, tokenValue string) error {
			revoked = tokenValue
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if revoked != "" {
		t.Errorf("Logout should be called with empty token, got %q", revoked)
	}
}

func TestAuthHandler_Logout_StoreFailure_Returns500(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, tokenValue string) error {
			return fmt.Errorf("failed to revoke token: %w", errors.New("redis: connection refused"))
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer signed-token")
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
	if code := decodeErrorBody(t, w).Code; code != model.ErrCodePersistenceUnavailable {
		t.Errorf("code = %q, want %q", code, model.ErrCodePersistenceUnavailable)
	}
}
