package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeRecorded          = "recorded"
	OutcomeReplaced          = "replaced"
	OutcomeIncompleteProfile = "incomplete_profile"
	OutcomeScoringFailed     = "scoring_failed"
	OutcomePersistenceFailed = "persistence_failed"
)

var (
	submissionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitprogress",
		Subsystem: "ledger",
		Name:      "last_submission_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent submission committed to the ledger.",
	})

	submissionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitprogress",
		Subsystem: "ledger",
		Name:      "submissions_total",
		Help:      "Submissions handled, labeled by outcome.",
	}, []string{"outcome"})

	scoringDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitprogress",
		Subsystem: "scoring",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the external scoring authority.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(submissionPersistGauge, submissionCounter, scoringDuration)
}

// RecordSubmissionPersisted updates the ledger watermark gauge.
func RecordSubmissionPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	submissionPersistGauge.Set(float64(ts.Unix()))
}

// RecordSubmissionOutcome counts a handled submission.
func RecordSubmissionOutcome(outcome string) {
	submissionCounter.WithLabelValues(outcome).Inc()
}

// ObserveScoring records the latency of one scoring call.
func ObserveScoring(outcome string, elapsed time.Duration) {
	scoringDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SubmissionCounter exposes the outcome counter for assertions.
func SubmissionCounter(outcome string) prometheus.Counter {
	return submissionCounter.WithLabelValues(outcome)
}
