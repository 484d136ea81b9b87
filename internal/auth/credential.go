package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/hitoshi/kodbank/internal/model"
)

// ErrCredentialInvalid は署名検証またはデコードに失敗したクレデンシャルを表す。
var ErrCredentialInvalid = errors.New("credential is invalid")

// credentialClaims はクレデンシャルに埋め込むクレーム。
type credentialClaims struct {
	AccountID  string `json:"account_id"`
	CustomerID string `json:"customer_id"`
	jwt.RegisteredClaims
}

// CredentialSigner はHS256署名付きのベアラークレデンシャルを発行・検証する。
//
// expクレームは発行時に埋め込むが、検証時には評価しない。
// 有効期限の正本はトークンストアの記録であり、期限切れの判定と削除はストア側で行う。
type CredentialSigner struct {
	secret []byte
	parser *jwt.Parser
}

// NewCredentialSigner はCredentialSignerを生成する。
func NewCredentialSigner(secret []byte) *CredentialSigner {
	return &CredentialSigner{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Sign はidentityを埋め込んだクレデンシャルを発行する。
// 発行ごとに一意なjtiを付与するため、同一秒内の発行でも値が衝突しない。
func (s *CredentialSigner) Sign(identity model.Identity, issuedAt, expiresAt time.Time) (string, error) {
	claims := credentialClaims{
		AccountID:  identity.AccountID,
		CustomerID: identity.CustomerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   identity.AccountID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify は署名を検証し、クレームからidentityを取り出す。
// 署名不一致、形式不正、アルゴリズム不一致、必須クレーム欠落はすべてErrCredentialInvalidを返す。
func (s *CredentialSigner) Verify(raw string) (model.Identity, error) {
	claims := &credentialClaims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return model.Identity{}, ErrCredentialInvalid
	}
	if claims.AccountID == "" || claims.CustomerID == "" {
		return model.Identity{}, ErrCredentialInvalid
	}

	return model.Identity{
		AccountID:  claims.AccountID,
		CustomerID: claims.CustomerID,
	}, nil
}
