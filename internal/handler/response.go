package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kodbank/internal/middleware"
	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/money"
	"github.com/shopspring/decimal"
)

// リクエストボディの上限（バイト）
const maxRequestBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 不正なJSONや上限超過はINVALID_REQUESTとして扱う。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("リクエストボディが空です")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.NewInvalidRequestError("リクエストボディが大きすぎます")
		}
		return model.NewInvalidRequestError("JSONの形式が正しくありません")
	}
	return nil
}

// parseAmount はリクエストの金額を最小通貨単位に変換する。
// 数値と文字列のどちらの表現も受け付ける。
func parseAmount(amount decimal.NullDecimal) (int64, *model.APIError) {
	if !amount.Valid {
		return 0, model.NewInvalidAmountError("金額が指定されていません")
	}
	minor, err := money.Parse(amount.Decimal)
	if err != nil {
		return 0, model.NewInvalidAmountError(err.Error())
	}
	return minor, nil
}

// identityOrUnauthorized はコンテキストから識別情報を取り出す。
// 認証ミドルウェアの外で呼ばれた場合は401を書き込んでfalseを返す。
func identityOrUnauthorized(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
		return model.Identity{}, false
	}
	return identity, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外は永続化層などのインフラ障害として扱い、詳細はログのみに残す
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewPersistenceUnavailableError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidAmount,
		model.ErrCodeSelfTransfer,
		model.ErrCodeRecipientNotFound,
		model.ErrCodeInsufficientFunds,
		model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidCredentials,
		model.ErrCodeEmailAlreadyExists:
		return http.StatusBadRequest
	case model.ErrCodeMissingCredential, model.ErrCodeInvalidCredential:
		return http.StatusUnauthorized
	case model.ErrCodeExpiredOrRevoked:
		return http.StatusForbidden
	case model.ErrCodeAccountNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
