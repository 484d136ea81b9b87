// Package ledger は口座残高の参照と入出金を提供する。
//
// 残高の加算・減算はいずれも単一の条件付きUPDATEで行い、
// 読み取ってから書き込む操作は持たない。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/kodbank/internal/metrics"
	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/repository"
)

const (
	opDeposit  = "deposit"
	opWithdraw = "withdraw"
)

// Service は口座残高に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(accounts repository.AccountRepository, m metrics.MetricsCollector) *Service {
	return &Service{accounts: accounts, metrics: m}
}

// GetBalance は口座の現在残高を返す。
func (s *Service) GetBalance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// GetProfile は口座情報を返す。
func (s *Service) GetProfile(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	return account, nil
}

// FindByCustomerID はカスタマーIDで口座を探す。見つからない場合はRecipientNotFoundを返す。
func (s *Service) FindByCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	account, err := s.accounts.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by customer ID: %w", err)
	}
	if account == nil {
		return nil, model.NewRecipientNotFoundError(customerID)
	}
	return account, nil
}

// Credit は残高にamountを加算し、加算後の残高を返す。
func (s *Service) Credit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		s.record(opDeposit, metrics.ResultFailure)
		return 0, model.NewInvalidAmountError("金額は0より大きくなければなりません")
	}

	balance, err := s.accounts.Credit(ctx, accountID, amount)
	if errors.Is(err, repository.ErrNotFound) {
		s.record(opDeposit, metrics.ResultFailure)
		return 0, model.NewAccountNotFoundError()
	}
	if err != nil {
		s.record(opDeposit, metrics.ResultError)
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}

	s.record(opDeposit, metrics.ResultSuccess)
	slog.Info("deposit completed",
		slog.String("account_id", accountID),
		slog.Int64("amount", amount),
	)
	return balance, nil
}

// Debit は残高がamount以上の場合のみ減算し、減算後の残高を返す。
// 残高不足の場合はInsufficientFundsを返し、残高は変化しない。
func (s *Service) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		s.record(opWithdraw, metrics.ResultFailure)
		return 0, model.NewInvalidAmountError("金額は0より大きくなければなりません")
	}

	balance, ok, err := s.accounts.DebitIfSufficient(ctx, accountID, amount)
	if errors.Is(err, repository.ErrNotFound) {
		s.record(opWithdraw, metrics.ResultFailure)
		return 0, model.NewAccountNotFoundError()
	}
	if err != nil {
		s.record(opWithdraw, metrics.ResultError)
		return 0, fmt.Errorf("failed to debit account: %w", err)
	}
	if !ok {
		s.record(opWithdraw, metrics.ResultFailure)
		return 0, model.NewInsufficientFundsError()
	}

	s.record(opWithdraw, metrics.ResultSuccess)
	slog.Info("withdrawal completed",
		slog.String("account_id", accountID),
		slog.Int64("amount", amount),
	)
	return balance, nil
}

func (s *Service) record(op, result string) {
	if s.metrics != nil {
		s.metrics.RecordLedgerOperation(op, result)
	}
}
