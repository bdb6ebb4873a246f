package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Results for the events counter.
const (
	resultDelivered    = "delivered"
	resultFailed       = "failed"
	resultDeadLettered = "dead_lettered"
)

// Outcomes for the DLQ entries counter.
const (
	dlqOutcomeRequeued    = "requeued"
	dlqOutcomeRetried     = "retry_scheduled"
	dlqOutcomeQuarantined = "quarantined"
)

var (
	eventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitprogress",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the dispatcher, labeled by topic and result.",
	}, []string{"topic", "result"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitprogress",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	publishLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitprogress",
		Subsystem: "outbox",
		Name:      "publish_lag_seconds",
		Help:      "Delay between an event being committed to the outbox and its delivery to Kafka.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitprogress",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, labeled by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitprogress",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Entries still eligible for replay.",
	})
)

func init() {
	prometheus.MustRegister(eventsCounter, batchDuration, publishLag, dlqEntriesCounter, dlqBacklogGauge)
}

func recordEvents(messages []Message, result string, now time.Time) {
	for _, msg := range messages {
		eventsCounter.WithLabelValues(msg.Topic, result).Inc()
		if result == resultDelivered && !msg.CreatedAt.IsZero() {
			publishLag.Observe(now.Sub(msg.CreatedAt).Seconds())
		}
	}
}

func recordDLQ(entry dlqEntry, outcome string) {
	dlqEntriesCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
