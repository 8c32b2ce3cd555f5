// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リマインダーワーカーとスイーパーから利用する。
type MetricsCollector interface {
	RecordChannelOutcome(channel, outcome string)
	RecordReminderProcessed()
	RecordSubscriptionCleared()
	RecordDispatchLatency(duration time.Duration)
	RecordTrialsDemoted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	channelOutcome      *prometheus.CounterVec
	reminderProcessed   prometheus.Counter
	subscriptionCleared prometheus.Counter
	dispatchLatency     prometheus.Histogram
	trialsDemoted       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		channelOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoyaku_reminder_channel_outcome_total",
			Help: "チャネル別・結果別のリマインダー送信試行数",
		}, []string{"channel", "outcome"}),
		reminderProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yoyaku_reminder_processed_total",
			Help: "処理済み（notified化）リマインダー候補の合計数",
		}),
		subscriptionCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yoyaku_subscription_cleared_total",
			Help: "恒久的失敗により無効化されたプッシュ購読の合計数",
		}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yoyaku_reminder_dispatch_seconds",
			Help:    "リマインダースイープ1サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		trialsDemoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yoyaku_trials_demoted_total",
			Help: "freeプランに降格された試用アカウントの合計数",
		}),
	}

	reg.MustRegister(
		c.channelOutcome,
		c.reminderProcessed,
		c.subscriptionCleared,
		c.dispatchLatency,
		c.trialsDemoted,
	)

	return c
}

// RecordChannelOutcome はチャネル送信の結果を記録する。
// channelは"native_push"/"web_push"/"email"/"live_event"、
// outcomeは"delivered"/"transient_failure"/"permanent_failure"。
func (c *Collector) RecordChannelOutcome(channel, outcome string) {
	c.channelOutcome.WithLabelValues(channel, outcome).Inc()
}

// RecordReminderProcessed は1件のリマインダー候補の処理完了を記録する。
func (c *Collector) RecordReminderProcessed() {
	c.reminderProcessed.Inc()
}

// RecordSubscriptionCleared はプッシュ購読の無効化を記録する。
func (c *Collector) RecordSubscriptionCleared() {
	c.subscriptionCleared.Inc()
}

// RecordDispatchLatency はスイープ1サイクルの所要時間を記録する。
func (c *Collector) RecordDispatchLatency(duration time.Duration) {
	c.dispatchLatency.Observe(duration.Seconds())
}

// RecordTrialsDemoted は降格された試用アカウント数を記録する。
func (c *Collector) RecordTrialsDemoted(count int64) {
	c.trialsDemoted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイント用のハンドラーを構築する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
