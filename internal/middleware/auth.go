// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/kodbank/internal/auth"
	"github.com/hitoshi/kodbank/internal/metrics"
	"github.com/hitoshi/kodbank/internal/model"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに呼び出し元の識別情報を格納するためのキー。
var identityContextKey = contextKey("identity")

// 認証失敗メトリクスのreasonラベル
const (
	authFailureMissing     = "missing"
	authFailureInvalid     = "invalid"
	authFailureExpired     = "expired_or_revoked"
	authFailureUnavailable = "store_unavailable"
)

// CredentialVerifier は署名付きクレデンシャルを検証し、識別情報を取り出す。
// auth.CredentialSignerの部分集合として定義する。
type CredentialVerifier interface {
	Verify(raw string) (model.Identity, error)
}

// TokenValidator はトークンストア上の記録を確認する。
// auth.TokenStoreの部分集合として定義する。
type TokenValidator interface {
	Validate(ctx context.Context, value string) (*model.SessionToken, error)
}

// NewAuthMiddleware はBearerトークンを検証するミドルウェアを返す。
// 署名の検証とトークンストアの照合の両方に成功した場合のみ、
// 識別情報をリクエストコンテキストに注入して次のハンドラを呼ぶ。
//   - ヘッダーなし: 401 MISSING_CREDENTIAL
//   - 署名不正: 401 INVALID_CREDENTIAL
//   - 記録なし、期限切れ: 403 EXPIRED_OR_REVOKED
//   - ストア障害: 500 PERSISTENCE_UNAVAILABLE
func NewAuthMiddleware(verifier CredentialVerifier, validator TokenValidator, m metrics.MetricsCollector) func(next http.Handler) http.Handler {
	recordFailure := func(reason string) {
		if m != nil {
			m.RecordAuthFailure(reason)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			raw := BearerToken(r)
			if raw == "" {
				recordFailure(authFailureMissing)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
				return
			}

			// 2. 署名を検証
			identity, err := verifier.Verify(raw)
			if err != nil {
				recordFailure(authFailureInvalid)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialError())
				return
			}

			// 3. トークンストアの記録を確認
			token, err := validator.Validate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenInvalid) {
					recordFailure(authFailureExpired)
					WriteErrorResponse(w, http.StatusForbidden, model.NewExpiredOrRevokedError())
					return
				}
				slog.Error("failed to validate token",
					slog.String("account_id", identity.AccountID),
					slog.String("error", err.Error()),
				)
				recordFailure(authFailureUnavailable)
				WriteErrorResponse(w, http.StatusInternalServerError, model.NewPersistenceUnavailableError())
				return
			}
			// 記録の持ち主とクレームが食い違うものは失効扱い
			if token.AccountID != identity.AccountID {
				recordFailure(authFailureExpired)
				WriteErrorResponse(w, http.StatusForbidden, model.NewExpiredOrRevokedError())
				return
			}

			// 4. 識別情報をコンテキストに注入
			setLogAccountID(r.Context(), identity.AccountID)
			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、または形式が異なる場合は空文字を返す。
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// IdentityFromContext はリクエストコンテキストから識別情報を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || identity.AccountID == "" {
		return model.Identity{}, false
	}
	return identity, true
}

// ContextWithIdentity はコンテキストに識別情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
