package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/repository"
)

// ErrTokenInvalid はトークンが存在しない、期限切れ、または失効済みであることを表す。
var ErrTokenInvalid = errors.New("token is invalid, expired or revoked")

// TokenStore は発行済みトークンの記録を管理する。
// 署名が正しくても、ここに記録が無いトークンは受け付けない。
type TokenStore struct {
	repo   repository.TokenRepository
	signer *CredentialSigner
	now    func() time.Time
}

// NewTokenStore はTokenStoreを生成する。
func NewTokenStore(repo repository.TokenRepository, signer *CredentialSigner) *TokenStore {
	return &TokenStore{
		repo:   repo,
		signer: signer,
		now:    time.Now,
	}
}

// Issue はidentityに対する新しいトークンを発行し、now+ttlを有効期限として記録する。
func (s *TokenStore) Issue(ctx context.Context, identity model.Identity, ttl time.Duration) (*model.SessionToken, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	value, err := s.signer.Sign(identity, now, expiresAt)
	if err != nil {
		return nil, err
	}

	token := &model.SessionToken{
		Value:     value,
		AccountID: identity.AccountID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to record token: %w", err)
	}

	return token, nil
}

// Validate はトークンの記録を確認する。
// 記録が無い場合はErrTokenInvalidを返す。
// 期限切れの場合は記録を削除してからErrTokenInvalidを返す。
// ストアにアクセスできない場合はラップしたインフラエラーを返す。
func (s *TokenStore) Validate(ctx context.Context, value string) (*model.SessionToken, error) {
	token, err := s.repo.FindByValue(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if token == nil {
		return nil, ErrTokenInvalid
	}

	if token.Expired(s.now()) {
		if err := s.repo.DeleteByValue(ctx, value); err != nil {
			// 削除に失敗しても期限切れであることは変わらない
			slog.Warn("failed to purge expired token",
				slog.String("account_id", token.AccountID),
				slog.String("error", err.Error()),
			)
		}
		return nil, ErrTokenInvalid
	}

	return token, nil
}

// Revoke はトークンの記録を削除する。記録が無くてもエラーにしない。
func (s *TokenStore) Revoke(ctx context.Context, value string) error {
	if err := s.repo.DeleteByValue(ctx, value); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
