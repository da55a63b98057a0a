package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "summary":
		metric = prometheus.NewSummary(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	}
	return metric
}

// Business collectors. They are registered once with the default registry and
// are safe to use before (or without) the HTTP metrics endpoint.
var (
	QuotaDecisions = &Metric{
		ID:          "quotaDecisions",
		Name:        "quota_decisions_total",
		Description: "Quota checks partitioned by action and outcome.",
		Type:        "counter_vec",
		Args:        []string{"action", "allowed"},
	}
	PromoRedemptions = &Metric{
		ID:          "promoRedemptions",
		Name:        "promo_redemptions_total",
		Description: "Promo redemption attempts partitioned by outcome.",
		Type:        "counter_vec",
		Args:        []string{"outcome"},
	}
	WebhookEvents = &Metric{
		ID:          "webhookEvents",
		Name:        "webhook_events_total",
		Description: "Payment provider webhook deliveries partitioned by event type and outcome.",
		Type:        "counter_vec",
		Args:        []string{"type", "outcome"},
	}
	SubscriptionsSwept = &Metric{
		ID:          "subscriptionsSwept",
		Name:        "subscriptions_swept_total",
		Description: "Expired grants rewritten to free by the sweeper.",
		Type:        "counter",
	}
	BusinessProcess = &Metric{
		ID:          "bpDur",
		Name:        "bp_dur",
		Description: "process latency in milliseconds",
		Type:        "histogram_vec",
		Args:        []string{"type", "subtype"},
	}
)

var businessMetrics = []*Metric{QuotaDecisions, PromoRedemptions, WebhookEvents, SubscriptionsSwept, BusinessProcess}

var registerOnce sync.Once

func registerBusiness() {
	registerOnce.Do(func() {
		for _, m := range businessMetrics {
			c := NewMetric(m, "lingobill")
			if err := prometheus.Register(c); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					c = are.ExistingCollector
				}
			}
			m.MetricCollector = c
		}
	})
}

// Inc increments a counter or counter_vec business metric.
func Inc(m *Metric, labels ...string) {
	registerBusiness()
	switch c := m.MetricCollector.(type) {
	case *prometheus.CounterVec:
		c.WithLabelValues(labels...).Inc()
	case prometheus.Counter:
		c.Inc()
	}
}

// Add adds n to a plain counter business metric.
func Add(m *Metric, n float64) {
	registerBusiness()
	if c, ok := m.MetricCollector.(prometheus.Counter); ok {
		c.Add(n)
	}
}

// ObserveSince records the elapsed milliseconds of a business process.
func ObserveSince(start time.Time, typ, subtype string) {
	registerBusiness()
	if h, ok := BusinessProcess.MetricCollector.(*prometheus.HistogramVec); ok {
		h.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
	}
}

// MillisecondsSince returns the elapsed time in fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

const (
	RefererKey = "X-Referer"
)
