package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// apiRequestsTotal counts streaming API requests by operation and status code.
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rsc_api_requests_total",
		Help: "Total number of streaming API requests",
	}, []string{"op", "status"})

	// apiRequestDuration measures streaming API request latency.
	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rsc_api_request_duration_seconds",
		Help:    "Streaming API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// retriesTotal counts re-invocations of retryable calls.
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rsc_retries_total",
		Help: "Total number of retried calls",
	}, []string{"op"})

	// batchesWrittenTotal counts add-tracks batches accepted by the service.
	batchesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rsc_batches_written_total",
		Help: "Total number of track batches written",
	})

	// batchFailuresTotal counts add-tracks batches that failed terminally.
	batchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rsc_batch_failures_total",
		Help: "Total number of track batches that failed",
	})

	// runsTotal counts finished runs by outcome.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rsc_runs_total",
		Help: "Total number of collection runs by outcome",
	}, []string{"outcome"})

	// rollbacksTotal counts rollback attempts by outcome.
	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rsc_rollbacks_total",
		Help: "Total number of rollback attempts by outcome",
	}, []string{"outcome"})

	// tracksCollected is the number of tracks collected by the latest run.
	tracksCollected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rsc_tracks_collected",
		Help: "Tracks collected by the most recent run",
	})
)

// Outcome labels for runs and rollbacks.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// RecordRequest records one API request. A status of 0 marks a transport failure.
func RecordRequest(op string, status int, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordRetry records one retry of op.
func RecordRetry(op string) {
	retriesTotal.WithLabelValues(op).Inc()
}

// RecordBatch records the terminal outcome of one batch write.
func RecordBatch(ok bool) {
	if ok {
		batchesWrittenTotal.Inc()
		return
	}
	batchFailuresTotal.Inc()
}

// RecordRun records a finished run and the number of tracks it collected.
func RecordRun(ok bool, collected int) {
	runsTotal.WithLabelValues(outcome(ok)).Inc()
	tracksCollected.Set(float64(collected))
}

// RecordRollback records one rollback attempt.
func RecordRollback(ok bool) {
	rollbacksTotal.WithLabelValues(outcome(ok)).Inc()
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}
