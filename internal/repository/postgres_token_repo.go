package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kodbank/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンを保存する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.SessionToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (token_value, account_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		token.Value, token.AccountID, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindByValue はトークン値で記録を取得する。
// 期限の判定は呼び出し側が行うため、期限切れの記録も返す。
func (r *PostgresTokenRepo) FindByValue(ctx context.Context, value string) (*model.SessionToken, error) {
	token := &model.SessionToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT token_value, account_id, expires_at, created_at
		 FROM tokens
		 WHERE token_value = $1`,
		value,
	).Scan(&token.Value, &token.AccountID, &token.ExpiresAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	return token, nil
}

// DeleteByValue はトークンを削除する。
func (r *PostgresTokenRepo) DeleteByValue(ctx context.Context, value string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE token_value = $1`,
		value,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
