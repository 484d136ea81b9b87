// Package events は送金完了イベントの外部配信を提供する。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/kodbank/internal/model"
	"github.com/segmentio/kafka-go"
)

// DefaultTransferTopic は送金完了イベントの既定トピック名。
const DefaultTransferTopic = "kodbank.transfer.completed"

const eventTypeTransferCompleted = "transfer.completed"

// Publisher は送金完了イベントの配信先。
type Publisher interface {
	PublishTransferCompleted(ctx context.Context, event model.TransferCompletedEvent) error
}

// messageWriter は *kafka.Writer のうち使用する部分。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher はKafkaにイベントをJSONで書き込む。
// メッセージキーに送金元口座IDを使うため、同じ口座からの送金は同じパーティションに順序通り届く。
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher はKafkaPublisherを生成する。
// 接続はWriteMessagesの初回呼び出し時に確立される。
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTransferTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}
}

// PublishTransferCompleted はイベントを1件書き込む。
func (p *KafkaPublisher) PublishTransferCompleted(ctx context.Context, event model.TransferCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SenderAccountID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventTypeTransferCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close は書き込み待ちのメッセージを送出して接続を閉じる。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher はイベントを破棄する。Kafkaを設定しない場合に使う。
type NopPublisher struct{}

// PublishTransferCompleted は何もしない。
func (NopPublisher) PublishTransferCompleted(context.Context, model.TransferCompletedEvent) error {
	return nil
}

// compile-time interface check
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
