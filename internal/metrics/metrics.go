package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShippingMetrics 出货模块的 Prometheus 指标
type ShippingMetrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	operations   *prometheus.CounterVec
	cascadeRows  *prometheus.CounterVec
	txRetries    prometheus.Counter
	cacheLookups *prometheus.CounterVec
	taskResults  *prometheus.CounterVec
}

// NewShippingMetrics 在给定 registerer 上注册指标，reg 为 nil 时返回空实现
func NewShippingMetrics(reg prometheus.Registerer) *ShippingMetrics {
	if reg == nil {
		return &ShippingMetrics{}
	}
	m := &ShippingMetrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipping_http_requests_total",
			Help: "HTTP requests served by the shipping API.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shipping_http_request_duration_seconds",
			Help:    "Latency of shipping API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipping_operations_total",
			Help: "Registry operations by outcome.",
		}, []string{"operation", "outcome"}),
		cascadeRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipping_cascade_rows_total",
			Help: "Child rows updated by shipment cascades.",
		}, []string{"entity"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shipping_tx_retries_total",
			Help: "Transactions retried after serialization failures.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipping_summary_cache_lookups_total",
			Help: "Summary cache lookups by result.",
		}, []string{"result"}),
		taskResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipping_task_results_total",
			Help: "Async shipment event tasks by result.",
		}, []string{"task", "result"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.operations, m.cascadeRows, m.txRetries, m.cacheLookups, m.taskResults)
	return m
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *ShippingMetrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncOperation 记录业务操作结果
func (m *ShippingMetrics) IncOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// AddCascadeRows 记录级联更新的子项行数
func (m *ShippingMetrics) AddCascadeRows(entity string, rows int64) {
	if m == nil || m.cascadeRows == nil || rows <= 0 {
		return
	}
	m.cascadeRows.WithLabelValues(normalizeLabel(entity)).Add(float64(rows))
}

// IncTxRetry 记录事务重试
func (m *ShippingMetrics) IncTxRetry() {
	if m == nil || m.txRetries == nil {
		return
	}
	m.txRetries.Inc()
}

// IncCacheLookup 记录缓存命中情况
func (m *ShippingMetrics) IncCacheLookup(hit bool) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// IncTaskResult 记录异步任务结果
func (m *ShippingMetrics) IncTaskResult(task, result string) {
	if m == nil || m.taskResults == nil {
		return
	}
	m.taskResults.WithLabelValues(normalizeLabel(task), normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
