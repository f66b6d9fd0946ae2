// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
// 方法对 nil 接收者安全，未启用监控时可直接传 nil
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	affiliateTransitions *prometheus.CounterVec
	commissionsCreated   *prometheus.CounterVec
	commissionsEarned    prometheus.Counter
	commissionAmount     *prometheus.CounterVec
	payoutRequests       *prometheus.CounterVec
	notifications        *prometheus.CounterVec
}

// New 创建指标收集器，使用独立注册表
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "affiliate"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		affiliateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "affiliate_transitions_total",
				Help:      "Affiliate status transitions by action",
			},
			[]string{"action"},
		),
		commissionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commissions_created_total",
				Help:      "Pending commissions created by referral type",
			},
			[]string{"referral_type"},
		),
		commissionsEarned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commissions_earned_total",
				Help:      "Commissions moved from pending to earned",
			},
		),
		commissionAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commission_amount_total",
				Help:      "Sum of commission amounts by lifecycle stage",
			},
			[]string{"stage"},
		),
		payoutRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_requests_total",
				Help:      "Payout requests by result",
			},
			[]string{"result"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Affiliate notification attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
	}
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware(metricsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP 处理器
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// RecordAffiliateTransition 记录推广员状态变更
func (m *Metrics) RecordAffiliateTransition(action string) {
	if m == nil {
		return
	}
	m.affiliateTransitions.WithLabelValues(action).Inc()
}

// RecordCommissionCreated 记录新建待结算佣金
func (m *Metrics) RecordCommissionCreated(referralType string, amount float64) {
	if m == nil {
		return
	}
	m.commissionsCreated.WithLabelValues(referralType).Inc()
	m.commissionAmount.WithLabelValues("pending").Add(amount)
}

// RecordCommissionEarned 记录佣金确认
func (m *Metrics) RecordCommissionEarned(amount float64) {
	if m == nil {
		return
	}
	m.commissionsEarned.Inc()
	m.commissionAmount.WithLabelValues("earned").Add(amount)
}

// RecordCommissionPaid 记录佣金结清
func (m *Metrics) RecordCommissionPaid(amount float64) {
	if m == nil {
		return
	}
	m.commissionAmount.WithLabelValues("paid").Add(amount)
}

// RecordPayoutRequest 记录提现申请结果
func (m *Metrics) RecordPayoutRequest(result string) {
	if m == nil {
		return
	}
	m.payoutRequests.WithLabelValues(result).Inc()
}

// RecordNotification 记录通知发送结果
func (m *Metrics) RecordNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}
