// Package metrics exposes prometheus collectors for the agent's link,
// protocol, stash and flush layers, adapted from the teacher's
// metrics.go declaration style (NewCounterVec/NewGaugeVec/NewHistogramVec)
// but re-scoped from websocket-connection counters to QAPI link/flush
// concerns.
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	linkStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qapi_link_state_transitions_total",
		Help: "Link state transitions by resulting state.",
	}, []string{"state"})

	linkSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qapi_link_send_failures_total",
		Help: "Producer connect/send failures.",
	})

	linkReceiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qapi_link_receive_failures_total",
		Help: "Consumer connect/receive failures.",
	})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qapi_requests_in_flight",
		Help: "Outstanding requests in the request table.",
	})

	retryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qapi_retry_attempts_total",
		Help: "Resend attempts issued by the post-reconnect retry sweep.",
	})

	throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qapi_throttle_wait_seconds",
		Help:    "Time spent blocked on configured throttle windows before a send.",
		Buckets: prometheus.DefBuckets,
	})

	stashDiffsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qapi_stash_diffs_queued_total",
		Help: "Diffs submitted to the flush pool.",
	})

	flushQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qapi_flush_queue_depth",
		Help: "Pending diffs per flush pool.",
	}, []string{"pool"})

	flushResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qapi_flush_results_total",
		Help: "Flush pool diff applications by outcome.",
	}, []string{"pool", "result"})

	processCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qapi_process_cpu_percent",
		Help: "Process CPU usage percent, sampled via gopsutil.",
	})

	processRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qapi_process_rss_bytes",
		Help: "Process resident set size in bytes, sampled via gopsutil.",
	})
)

// LinkStateTransition records a link (send or receive side) reaching state.
func LinkStateTransition(state string) { linkStateTransitions.WithLabelValues(state).Inc() }

// SendFailure records a producer connect or publish failure.
func SendFailure() { linkSendFailures.Inc() }

// ReceiveFailure records a consumer connect failure.
func ReceiveFailure() { linkReceiveFailures.Inc() }

// RequestStarted records a new entry in the request table.
func RequestStarted() { requestsInFlight.Inc() }

// RequestCompleted records a request table entry's removal (success,
// failure or shutdown alike).
func RequestCompleted() { requestsInFlight.Dec() }

// RetryAttempt records one resend issued by the post-reconnect retry
// sweep.
func RetryAttempt() { retryAttempts.Inc() }

// ThrottleWait records the time a send spent blocked on the configured
// throttle windows.
func ThrottleWait(d time.Duration) { throttleWaitSeconds.Observe(d.Seconds()) }

// StashDiffQueued records one diff handed to a flush pool.
func StashDiffQueued() { stashDiffsQueued.Inc() }

// FlushQueueDepth records the current pending-diff count for the named
// pool.
func FlushQueueDepth(pool string, depth int) {
	flushQueueDepth.WithLabelValues(pool).Set(float64(depth))
}

// FlushResult records a pool's application of one diff as ok or failed.
func FlushResult(pool string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	flushResults.WithLabelValues(pool, result).Inc()
}

// StartProcessSampler periodically samples this process's CPU and RSS via
// gopsutil and updates the corresponding gauges, until ctx is cancelled.
// Sampling errors are ignored: a missed sample just leaves the gauge at
// its last value.
func StartProcessSampler(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn().Err(err).Msg("metrics: could not open self process handle, CPU/RSS gauges disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if pct, err := proc.CPUPercent(); err == nil {
					processCPUPercent.Set(pct)
				}
				if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
					processRSSBytes.Set(float64(mem.RSS))
				}
			}
		}
	}()
}

// Handler returns the HTTP handler serving the registered collectors in
// the Prometheus exposition format.
func Handler() http.Handler { return promhttp.Handler() }
