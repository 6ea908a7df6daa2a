package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/logging"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/notify"
	"github.com/manav03panchal/livedesk/internal/queue"
)

const metricsNamespace = "livedesk"

// Delivery outcomes used as the "outcome" label.
const (
	OutcomeSent     = "sent"
	OutcomeDeferred = "deferred"
	OutcomeFailed   = "failed"
)

// Metrics holds the daemon's Prometheus collectors on a private registry.
type Metrics struct {
	Deliveries      *prometheus.CounterVec
	DeliveryLatency prometheus.Histogram
	Triggers        *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	registry        *prometheus.Registry
}

// NewMetrics creates the daemon metrics and registers them on registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Notification jobs handed to the dispatcher, by outcome",
		}, []string{"outcome"}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent delivering one notification job",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "business_hour_triggers_total",
			Help:      "Business hour cron triggers fired, by action",
		}, []string{"action"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "schedule_refreshes_total",
			Help:      "Schedule table refreshes, by result",
		}, []string{"result"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors seen by the daemon, by category",
		}, []string{"category"}),
	}

	for _, c := range []prometheus.Collector{m.Deliveries, m.DeliveryLatency, m.Triggers, m.Refreshes, m.Errors} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register daemon metrics: %w", err)
		}
	}
	return m, nil
}

// RecordDelivery records one delivery attempt and its outcome.
func (m *Metrics) RecordDelivery(d time.Duration, err error) {
	m.DeliveryLatency.Observe(d.Seconds())
	switch {
	case err == nil:
		m.Deliveries.WithLabelValues(OutcomeSent).Inc()
	case lderrors.IsRecoverableError(err):
		m.Deliveries.WithLabelValues(OutcomeDeferred).Inc()
	default:
		m.Deliveries.WithLabelValues(OutcomeFailed).Inc()
		m.RecordError(err)
	}
}

// RecordTrigger counts a fired business hour trigger.
func (m *Metrics) RecordTrigger(action string) {
	m.Triggers.WithLabelValues(action).Inc()
}

// RecordRefresh counts a schedule refresh.
func (m *Metrics) RecordRefresh(err error) {
	if err != nil {
		m.Refreshes.WithLabelValues("error").Inc()
		m.RecordError(err)
		return
	}
	m.Refreshes.WithLabelValues("ok").Inc()
}

// RecordError counts err under its category.
func (m *Metrics) RecordError(err error) {
	m.Errors.WithLabelValues(lderrors.Classify(err).String()).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:      m.registry,
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Sender wraps next so every delivery is timed and counted.
func (m *Metrics) Sender(next notify.Sender) notify.Sender {
	return notify.SenderFunc(func(ctx context.Context, job *model.NotificationJob) error {
		start := time.Now()
		err := next.Deliver(ctx, job)
		m.RecordDelivery(time.Since(start), err)
		return err
	})
}

// MetricsSnapshot is a point-in-time view of the delivery counters.
type MetricsSnapshot struct {
	Sent     int64 `json:"sent"`
	Deferred int64 `json:"deferred"`
	Failed   int64 `json:"failed"`
	Opened   int64 `json:"opened"`
	Closed   int64 `json:"closed"`
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Sent:     counterValue(m.Deliveries.WithLabelValues(OutcomeSent)),
		Deferred: counterValue(m.Deliveries.WithLabelValues(OutcomeDeferred)),
		Failed:   counterValue(m.Deliveries.WithLabelValues(OutcomeFailed)),
		Opened:   counterValue(m.Triggers.WithLabelValues(ActionOpen)),
		Closed:   counterValue(m.Triggers.WithLabelValues(ActionClose)),
	}
}

func counterValue(c prometheus.Counter) int64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil || pb.Counter == nil {
		return 0
	}
	return int64(pb.Counter.GetValue())
}

// QueueCollector exports queue state counts and worker totals on scrape.
type QueueCollector struct {
	stats    func(ctx context.Context) (queue.Stats, error)
	worker   func() notify.WorkerStats
	timeout  time.Duration
	jobs     *prometheus.Desc
	worked   *prometheus.Desc
	scrapeOK *prometheus.Desc
}

// NewQueueCollector creates a collector. worker may be nil.
func NewQueueCollector(stats func(ctx context.Context) (queue.Stats, error), worker func() notify.WorkerStats) *QueueCollector {
	return &QueueCollector{
		stats:   stats,
		worker:  worker,
		timeout: 5 * time.Second,
		jobs: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "queue", "jobs"),
			"Notification jobs in the queue, by state",
			[]string{"state"}, nil),
		worked: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "worker", "jobs_total"),
			"Jobs handled by this daemon's worker, by action",
			[]string{"action"}, nil),
		scrapeOK: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "queue", "scrape_success"),
			"Whether reading queue stats succeeded (1) or not (0)",
			nil, nil),
	}
}

// Describe implements the prometheus.Collector interface.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
	ch <- c.worked
	ch <- c.scrapeOK
}

// Collect implements the prometheus.Collector interface.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	s, err := c.stats(ctx)
	if err != nil {
		logging.Warn("queue stats scrape failed", logging.KeyError, err)
		ch <- prometheus.MustNewConstMetric(c.scrapeOK, prometheus.GaugeValue, 0)
	} else {
		ch <- prometheus.MustNewConstMetric(c.scrapeOK, prometheus.GaugeValue, 1)
		for state, n := range map[string]int{
			queue.StatePending:   s.Pending,
			queue.StateScheduled: s.Scheduled,
			queue.StateSending:   s.Sending,
			queue.StateStale:     s.Stale,
			queue.StateFailed:    s.Failed,
		} {
			ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(n), state)
		}
	}

	if c.worker == nil {
		return
	}
	w := c.worker()
	for action, n := range map[string]int{
		"claimed":  w.Claimed,
		"sent":     w.Sent,
		"failed":   w.Failed,
		"deferred": w.Deferred,
		"flushed":  w.Flushed,
	} {
		ch <- prometheus.MustNewConstMetric(c.worked, prometheus.CounterValue, float64(n), action)
	}
}
