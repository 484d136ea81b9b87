package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/kodbank/internal/model"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "kodbank:token:"

// RedisTokenRepo はRedisを使用したトークンリポジトリ。
// キーにはトークンの有効期限と同じTTLを設定する。
type RedisTokenRepo struct {
	client redis.UniversalClient
}

// NewRedisTokenRepo はRedisTokenRepoを生成する。
func NewRedisTokenRepo(client redis.UniversalClient) *RedisTokenRepo {
	return &RedisTokenRepo{client: client}
}

// redisTokenRecord はRedisに保存するトークン情報。
type redisTokenRecord struct {
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Create はトークンを保存する。
func (r *RedisTokenRepo) Create(ctx context.Context, token *model.SessionToken) error {
	data, err := json.Marshal(redisTokenRecord{
		AccountID: token.AccountID,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		// 既に期限切れのトークンは保存しない
		return nil
	}

	if err := r.client.Set(ctx, tokenKeyPrefix+token.Value, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindByValue はトークン値で記録を取得する。見つからない場合はnilを返す。
func (r *RedisTokenRepo) FindByValue(ctx context.Context, value string) (*model.SessionToken, error) {
	data, err := r.client.Get(ctx, tokenKeyPrefix+value).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	var rec redisTokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return &model.SessionToken{
		Value:     value,
		AccountID: rec.AccountID,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// DeleteByValue はトークンを削除する。
func (r *RedisTokenRepo) DeleteByValue(ctx context.Context, value string) error {
	if err := r.client.Del(ctx, tokenKeyPrefix+value).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*RedisTokenRepo)(nil)
