// Package transfer は口座間の送金を提供する。
//
// 送金は単一のデータベーストランザクションで行う。送金元と送金先の行を
// ID昇順でロックしてから残高確認・減算・加算を行い、いずれかが失敗した場合は
// すべて巻き戻す。
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kodbank/internal/events"
	"github.com/hitoshi/kodbank/internal/metrics"
	"github.com/hitoshi/kodbank/internal/model"
	"github.com/hitoshi/kodbank/internal/repository"
)

// イベント配信はリクエストの完了を待たせないよう短めに打ち切る
const defaultPublishTimeout = 5 * time.Second

// Service は送金のオーケストレーションを行う。
type Service struct {
	accounts       repository.AccountRepository
	publisher      events.Publisher
	metrics        metrics.MetricsCollector
	now            func() time.Time
	publishTimeout time.Duration
}

// NewService はServiceを生成する。publisherとmetricsはnilでもよい。
func NewService(accounts repository.AccountRepository, publisher events.Publisher, m metrics.MetricsCollector) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		accounts:       accounts,
		publisher:      publisher,
		metrics:        m,
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
	}
}

// Transfer は送金元口座からカスタマーIDで指定した送金先口座へamountを移動する。
//
// 事前条件は次の順に判定し、最初に満たさなかったもののエラーを返す。
//  1. amountが正であること（InvalidAmount）
//  2. 送金先が自分自身でないこと（SelfTransfer）
//  3. 送金先が存在すること（RecipientNotFound）
//  4. 送金元の残高がamount以上であること（InsufficientFunds）
//
// 成功時は両口座の残高が同時に更新され、失敗時はどちらも変化しない。
// 同じ入力で再度呼ぶと再度送金される。
func (s *Service) Transfer(ctx context.Context, senderAccountID, recipientCustomerID string, amount int64) error {
	intent := model.TransferIntent{
		SenderAccountID:     senderAccountID,
		RecipientCustomerID: strings.ToUpper(strings.TrimSpace(recipientCustomerID)),
		Amount:              amount,
	}

	start := s.now()
	event, err := s.execute(ctx, intent)
	s.recordResult(err, s.now().Sub(start), intent.Amount)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			slog.Info("transfer rejected",
				slog.String("sender_account_id", intent.SenderAccountID),
				slog.String("recipient_customer_id", intent.RecipientCustomerID),
				slog.String("code", apiErr.Code),
			)
		}
		return err
	}

	slog.Info("transfer completed",
		slog.String("transfer_id", event.TransferID),
		slog.String("sender_account_id", event.SenderAccountID),
		slog.String("recipient_account_id", event.RecipientAccountID),
		slog.Int64("amount", event.Amount),
	)

	s.publish(ctx, *event)
	return nil
}

// execute はトランザクション内で事前条件の確認と残高移動を行う。
func (s *Service) execute(ctx context.Context, intent model.TransferIntent) (*model.TransferCompletedEvent, error) {
	if intent.Amount <= 0 {
		return nil, model.NewInvalidAmountError("金額は0より大きくなければなりません")
	}

	var event *model.TransferCompletedEvent
	err := s.accounts.WithinTx(ctx, func(tx repository.AccountTx) error {
		recipient, err := tx.FindByCustomerID(ctx, intent.RecipientCustomerID)
		if err != nil {
			return fmt.Errorf("failed to find recipient: %w", err)
		}

		ids := []string{intent.SenderAccountID}
		if recipient != nil && recipient.ID != intent.SenderAccountID {
			ids = append(ids, recipient.ID)
		}
		locked, err := tx.LockForUpdate(ctx, ids...)
		if err != nil {
			return err
		}

		sender := findAccount(locked, intent.SenderAccountID)
		if sender == nil {
			return model.NewAccountNotFoundError()
		}
		if sender.CustomerID == intent.RecipientCustomerID {
			return model.NewSelfTransferError()
		}
		if recipient == nil {
			return model.NewRecipientNotFoundError(intent.RecipientCustomerID)
		}
		// ロック取得までの間に送金先が削除された場合
		if findAccount(locked, recipient.ID) == nil {
			return model.NewRecipientNotFoundError(intent.RecipientCustomerID)
		}

		_, ok, err := tx.DebitIfSufficient(ctx, sender.ID, intent.Amount)
		if err != nil {
			return fmt.Errorf("failed to debit sender: %w", err)
		}
		if !ok {
			return model.NewInsufficientFundsError()
		}

		if _, err := tx.Credit(ctx, recipient.ID, intent.Amount); err != nil {
			return fmt.Errorf("failed to credit recipient: %w", err)
		}

		event = &model.TransferCompletedEvent{
			TransferID:          uuid.New().String(),
			SenderAccountID:     sender.ID,
			SenderCustomerID:    sender.CustomerID,
			RecipientAccountID:  recipient.ID,
			RecipientCustomerID: recipient.CustomerID,
			Amount:              intent.Amount,
			OccurredAt:          s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// publish はコミット済みの送金をイベントとして配信する。
// 配信の失敗は送金結果に影響させず、ログとメトリクスに残すだけにする。
func (s *Service) publish(ctx context.Context, event model.TransferCompletedEvent) {
	// クライアントが切断しても配信は続ける
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishTransferCompleted(pubCtx, event); err != nil {
		slog.Error("failed to publish transfer event",
			slog.String("transfer_id", event.TransferID),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordEventPublishFailure()
		}
	}
}

func (s *Service) recordResult(err error, elapsed time.Duration, amount int64) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordTransferLatency(elapsed)

	var apiErr *model.APIError
	switch {
	case err == nil:
		s.metrics.RecordTransfer(metrics.ResultSuccess)
		s.metrics.RecordTransferredAmount(amount)
	case errors.As(err, &apiErr):
		s.metrics.RecordTransfer(apiErr.Code)
	default:
		s.metrics.RecordTransfer(metrics.ResultError)
	}
}

func findAccount(accounts []*model.Account, id string) *model.Account {
	for _, a := range accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}
