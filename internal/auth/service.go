// Package auth は口座登録、ログイン、ログアウトとトークン管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/repository"
	"github.com/hitoshi/kodbank/internal/security"
	"golang.org/x/crypto/bcrypt"
)

const (
	customerIDLength   = 8
	customerIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// カスタマーIDが衝突した場合の再試行回数
	maxCustomerIDAttempts = 5

	maxNameLength  = 100
	maxPhoneLength = 32

	minPasswordLength = 8
	// bcryptは72バイトを超える入力を扱えない
	maxPasswordBytes = 72
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenTTL   time.Duration
	BcryptCost int
}

// RegisterInput は口座登録の入力。
type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token   *model.SessionToken
	Account *model.Account
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts  repository.AccountRepository
	tokens    *TokenStore
	sanitizer security.TextSanitizer
	config    ServiceConfig

	// 存在しないメールアドレスでも照合コストを揃えるためのダミーハッシュ
	dummyHash []byte

	newCustomerID func() (string, error)
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	tokens *TokenStore,
	sanitizer security.TextSanitizer,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("kodbank-dummy-password"), config.BcryptCost)

	return &Service{
		accounts:      accounts,
		tokens:        tokens,
		sanitizer:     sanitizer,
		config:        config,
		dummyHash:     dummy,
		newCustomerID: generateCustomerID,
	}
}

// Register は新しい口座を作成し、採番したカスタマーIDを含む口座を返す。
// 残高は0から始まる。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	name := s.sanitizer.Clean(in.Name, maxNameLength)
	phone := s.sanitizer.Clean(in.Phone, maxPhoneLength)
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, model.NewInvalidRequestError("メールアドレスの形式が正しくありません")
	}
	if name == "" {
		return nil, model.NewInvalidRequestError("氏名を入力してください")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Balance:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for attempt := 1; ; attempt++ {
		customerID, err := s.newCustomerID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate customer ID: %w", err)
		}
		account.CustomerID = customerID

		err = s.accounts.Create(ctx, account)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		if errors.Is(err, repository.ErrDuplicateCustomerID) && attempt < maxCustomerIDAttempts {
			slog.Warn("customer ID collision, retrying", slog.Int("attempt", attempt))
			continue
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account registered",
		slog.String("account_id", account.ID),
		slog.String("customer_id", account.CustomerID),
	)
	return account, nil
}

// Login はメールアドレスとパスワードを照合し、新しいトークンを発行する。
// メールアドレスの誤りとパスワードの誤りは区別せず同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	account, err := s.accounts.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(ctx, model.Identity{
		AccountID:  account.ID,
		CustomerID: account.CustomerID,
	}, s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("account logged in", slog.String("account_id", account.ID))
	return &LoginResult{Token: token, Account: account}, nil
}

// Logout はトークンを失効させる。トークンが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, tokenValue string) error {
	if tokenValue == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, tokenValue)
}

// normalizeEmail はメールアドレスを検証し、小文字化して返す。
// 表示名付きの形式（"Name <a@b>"）は受け付けない。
func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", err
	}
	if addr.Address != trimmed {
		return "", fmt.Errorf("unexpected address form: %q", raw)
	}
	return strings.ToLower(addr.Address), nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return model.NewInvalidRequestError(fmt.Sprintf("パスワードは%d文字以上で入力してください", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidRequestError("パスワードが長すぎます")
	}
	return nil
}

// generateCustomerID は英大文字と数字からなる8文字のカスタマーIDを生成する。
func generateCustomerID() (string, error) {
	max := big.NewInt(int64(len(customerIDAlphabet)))
	b := make([]byte, customerIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = customerIDAlphabet[n.Int64()]
	}
	return string(b), nil
}
