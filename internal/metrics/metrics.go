// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リコンサイラやサービス層から利用する。
type MetricsCollector interface {
	RecordReorder(outcome string)
	RecordRefill(trigger string)
	RecordRegenerateTitle()
	SetQueueDepth(storeID string, depth int)
	RecordConflictCheck(severity string)
	RecordScheduleLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reorder         *prometheus.CounterVec
	refill          *prometheus.CounterVec
	regenerateTitle prometheus.Counter
	queueDepth      *prometheus.GaugeVec
	conflictCheck   *prometheus.CounterVec
	scheduleLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reorder: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubplan_queue_reorder_total",
			Help: "キュー並び替えの結果別の合計数",
		}, []string{"outcome"}),
		refill: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubplan_queue_refill_total",
			Help: "キュー補充の契機別の合計数",
		}, []string{"trigger"}),
		regenerateTitle: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pubplan_title_regenerate_total",
			Help: "記事タイトル再生成成功の合計数",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pubplan_queue_depth",
			Help: "ストア別のキュー現在件数",
		}, []string{"store_id"}),
		conflictCheck: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubplan_conflict_check_total",
			Help: "スケジュール衝突チェックの深刻度別の合計数",
		}, []string{"severity"}),
		scheduleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pubplan_schedule_latency_seconds",
			Help:    "公開予約コミットのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.reorder,
		c.refill,
		c.regenerateTitle,
		c.queueDepth,
		c.conflictCheck,
		c.scheduleLatency,
	)

	return c
}

// RecordReorder は並び替えの結果（committed / rolled_back）を記録する。
func (c *Collector) RecordReorder(outcome string) {
	c.reorder.WithLabelValues(outcome).Inc()
}

// RecordRefill は補充の契機（manual / auto）を記録する。
func (c *Collector) RecordRefill(trigger string) {
	c.refill.WithLabelValues(trigger).Inc()
}

// RecordRegenerateTitle はタイトル再生成の成功を記録する。
func (c *Collector) RecordRegenerateTitle() {
	c.regenerateTitle.Inc()
}

// SetQueueDepth はストアのキュー現在件数を記録する。
func (c *Collector) SetQueueDepth(storeID string, depth int) {
	c.queueDepth.WithLabelValues(storeID).Set(float64(depth))
}

// RecordConflictCheck は衝突チェックの結果を深刻度別に記録する。
func (c *Collector) RecordConflictCheck(severity string) {
	c.conflictCheck.WithLabelValues(severity).Inc()
}

// RecordScheduleLatency は公開予約コミットのレイテンシを記録する。
func (c *Collector) RecordScheduleLatency(duration time.Duration) {
	c.scheduleLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
