// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/kodbank/internal/auth"
	"github.com/hitoshi/kodbank/internal/middleware"
	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/money"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.Account, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, tokenValue string) error
}

// AuthHandler は口座登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	CustomerName string `json:"customerName"`
	PhoneNumber  string `json:"phoneNumber"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

type registerResponse struct {
	Message    string `json:"message"`
	CustomerID string `json:"customerId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userSummary struct {
	CustomerName string `json:"customerName"`
	CustomerID   string `json:"customerId"`
	Email        string `json:"email"`
	Balance      string `json:"balance"`
}

type loginResponse struct {
	Message   string      `json:"message"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      userSummary `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register は口座を新規登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	account, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.CustomerName,
		Phone:    req.PhoneNumber,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:    "Registration successful",
		CustomerID: account.CustomerID,
	})
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt.UTC(),
		User: userSummary{
			CustomerName: result.Account.Name,
			CustomerID:   result.Account.CustomerID,
			Email:        result.Account.Email,
			Balance:      money.Format(result.Account.Balance),
		},
	})
}

// Logout はAuthorizationヘッダーのトークンを失効させる。
// トークンが無い、または既に失効済みでも200を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}
