package metrics

import (
	"github.com/collabroom/relay/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's prometheus collectors.
type Metrics struct {
	registry    *prometheus.Registry
	namespace   string
	connsActive prometheus.Gauge
	msgRecvCnt  *prometheus.CounterVec
	publishCnt  *prometheus.CounterVec
	deliveryCnt *prometheus.CounterVec
	fanoutSize  prometheus.Histogram
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "relay"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = []float64{1, 2, 5, 10, 25, 50, 100}
	}

	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	connsActive := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "connections_active"})
	msgRecvCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "messages_received_total"}, []string{"type"})
	publishCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "publish_total"}, []string{"status"})
	deliveryCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "deliveries_total"}, []string{"status"})
	fanoutSize := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: "fanout_size", Buckets: buckets})
	r.MustRegister(connsActive, msgRecvCnt, publishCnt, deliveryCnt, fanoutSize)

	return &Metrics{
		registry:    r,
		namespace:   ns,
		connsActive: connsActive,
		msgRecvCnt:  msgRecvCnt,
		publishCnt:  publishCnt,
		deliveryCnt: deliveryCnt,
		fanoutSize:  fanoutSize,
	}
}

// ConnOpened increments the active-connection gauge.
func (m *Metrics) ConnOpened() { m.connsActive.Inc() }

// ConnClosed decrements the active-connection gauge.
func (m *Metrics) ConnClosed() { m.connsActive.Dec() }

// MessageReceived counts one inbound message by type
// ("join", "edit", "cursor", "unknown", "malformed").
func (m *Metrics) MessageReceived(msgType string) {
	m.msgRecvCnt.WithLabelValues(msgType).Inc()
}

// PublishResult counts one bus publish attempt ("ok" or "error").
func (m *Metrics) PublishResult(status string) {
	m.publishCnt.WithLabelValues(status).Inc()
}

// Delivery counts one fan-out recipient attempt ("sent", "failed" or "skipped").
func (m *Metrics) Delivery(status string) {
	m.deliveryCnt.WithLabelValues(status).Inc()
}

// FanoutObserved records the recipient count of one fan-out.
func (m *Metrics) FanoutObserved(n int) {
	m.fanoutSize.Observe(float64(n))
}

// HTTPHandler returns a gin handler exposing the registry.
func (m *Metrics) HTTPHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
