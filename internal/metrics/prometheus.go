// Package metrics 导入流水线与 HTTP 接口的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager 持有全部指标，按依赖注入使用，不做全局单例
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	importsTotal     *prometheus.CounterVec
	importDuration   prometheus.Histogram
	importsInFlight  prometheus.Gauge
	pagesFetched     prometheus.Counter
	eventsInserted   prometheus.Counter
	gamesInserted    prometheus.Counter
	eventsDuplicate  prometheus.Counter
	eventsDropped    prometheus.Counter
	refreshRuns      prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpRequestDurMs *prometheus.HistogramVec
}

// Option Manager 配置项
type Option func(*Manager)

// WithNamespace 指标命名空间
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets 自定义导入耗时分桶（秒）
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry 指定注册表，测试里每个用例各用一个
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager 创建指标管理器
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gomafia",
		subsystem:        "sync",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.importsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "imports_total",
		Help:      "Subject imports by outcome",
	}, []string{"outcome"})
	m.importDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "import_duration_seconds",
		Help:      "Wall time of one subject import, fetch to commit",
		Buckets:   m.histogramBuckets,
	})
	m.importsInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "imports_in_flight",
		Help:      "Imports currently running",
	})
	m.pagesFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pages_fetched_total",
		Help:      "History pages fetched and parsed",
	})
	m.eventsInserted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_inserted_total",
		Help:      "Tournament rows inserted",
	})
	m.gamesInserted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_inserted_total",
		Help:      "Game rows inserted",
	})
	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "History entries merged away because another page repeated them",
	})
	m.eventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dropped_total",
		Help:      "History entries dropped for lack of a tournament id",
	})
	m.refreshRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_runs_total",
		Help:      "Scheduled refresh passes started",
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	m.httpRequestDurMs = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
	}, []string{"method", "route"})
}

// ImportStarted 返回结束回调，传入结果标签
func (m *Manager) ImportStarted() func(outcome string) {
	start := time.Now()
	m.importsInFlight.Inc()
	return func(outcome string) {
		m.importsInFlight.Dec()
		m.importDuration.Observe(time.Since(start).Seconds())
		m.importsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordSnapshot 抓取与归并的计数
func (m *Manager) RecordSnapshot(pages, duplicates, dropped int) {
	m.pagesFetched.Add(float64(pages))
	m.eventsDuplicate.Add(float64(duplicates))
	m.eventsDropped.Add(float64(dropped))
}

// RecordSaved 入库计数
func (m *Manager) RecordSaved(events, games int) {
	m.eventsInserted.Add(float64(events))
	m.gamesInserted.Add(float64(games))
}

// RecordRefresh 定时刷新开始一轮
func (m *Manager) RecordRefresh() {
	m.refreshRuns.Inc()
}

// Registry 暴露注册表（测试断言用）
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware 记录每个路由的请求数和耗时，route 取注册时的路径模板
func (m *Manager) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDurMs.WithLabelValues(c.Request.Method, route).Observe(float64(time.Since(start).Milliseconds()))
	}
}
