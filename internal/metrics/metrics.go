// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordTransfer(result string)
	RecordTransferLatency(duration time.Duration)
	RecordTransferredAmount(amount int64)
	RecordLedgerOperation(operation, result string)
	RecordAuthFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordEventPublishFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	transfers           *prometheus.CounterVec
	transferLatency     prometheus.Histogram
	transferredAmount   prometheus.Counter
	ledgerOps           *prometheus.CounterVec
	authFailures        *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
	eventPublishFailure prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kodbank_transfers_total",
			Help: "結果別の送金件数",
		}, []string{"result"}),
		transferLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kodbank_transfer_duration_seconds",
			Help:    "送金トランザクションの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		transferredAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kodbank_transferred_amount_minor_total",
			Help: "成功した送金の合計金額（最小通貨単位）",
		}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kodbank_ledger_operations_total",
			Help: "操作種別・結果別の入出金件数",
		}, []string{"operation", "result"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kodbank_auth_failures_total",
			Help: "理由別の認証失敗件数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kodbank_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		eventPublishFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kodbank_event_publish_failures_total",
			Help: "送金完了イベントの配信失敗数",
		}),
	}

	reg.MustRegister(
		c.transfers,
		c.transferLatency,
		c.transferredAmount,
		c.ledgerOps,
		c.authFailures,
		c.httpStatus,
		c.eventPublishFailure,
	)

	return c
}

// RecordTransfer は送金の結果を記録する。resultにはエラーコードも渡せる。
func (c *Collector) RecordTransfer(result string) {
	c.transfers.WithLabelValues(result).Inc()
}

// RecordTransferLatency は送金のレイテンシを記録する。
func (c *Collector) RecordTransferLatency(duration time.Duration) {
	c.transferLatency.Observe(duration.Seconds())
}

// RecordTransferredAmount は成功した送金の金額を加算する。
func (c *Collector) RecordTransferredAmount(amount int64) {
	c.transferredAmount.Add(float64(amount))
}

// RecordLedgerOperation は入金・出金の結果を記録する。
func (c *Collector) RecordLedgerOperation(operation, result string) {
	c.ledgerOps.WithLabelValues(operation, result).Inc()
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordEventPublishFailure はイベント配信失敗を記録する。
func (c *Collector) RecordEventPublishFailure() {
	c.eventPublishFailure.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
