// Package metrics provides observability for the asylum server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asylum"

var (
	alertsArmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_armed_total",
		Help:      "Alert cycles started.",
	})
	alertOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_outcomes_total",
		Help:      "Resolved alert cycles by outcome.",
	}, []string{"outcome"})
	escapeBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escape_batches_total",
		Help:      "Escape events that moved at least one inmate.",
	})
	escapes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inmates_escaped_total",
		Help:      "Inmates moved from captured to escaped.",
	})
	captures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inmates_captured_total",
		Help:      "Escaped inmates brought back by a guard.",
	})
	secondsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "alert_seconds_remaining",
		Help:      "Countdown of the running alert.",
	})
	escapedNow = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inmates_escaped_current",
		Help:      "Inmates currently escaped.",
	})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Active WebSocket connections.",
	})
	wsMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_messages_total",
		Help:      "WebSocket messages by direction.",
	}, []string{"direction"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Calls to the superhero API.",
	}, []string{"endpoint", "result"})
	journalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_writes_total",
		Help:      "Events written to the journal.",
	}, []string{"result"})
	journalBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "journal_backlog",
		Help:      "Events appended but not yet handed to the journal.",
	})
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_cache_lookups_total",
		Help:      "Upstream cache reads by endpoint and hit/miss.",
	}, []string{"endpoint", "result"})
)

// RecordArmed counts a new alert cycle.
func RecordArmed() {
	alertsArmed.Inc()
}

// RecordOutcome counts a resolved cycle.
func RecordOutcome(outcome string) {
	alertOutcomes.WithLabelValues(outcome).Inc()
}

// RecordEscapes counts one escape batch of n inmates.
func RecordEscapes(n int) {
	if n <= 0 {
		return
	}
	escapeBatches.Inc()
	escapes.Add(float64(n))
}

// RecordCapture counts a capture.
func RecordCapture() {
	captures.Inc()
}

// SetCountdown publishes the seconds left on the running alert.
func SetCountdown(seconds int) {
	secondsRemaining.Set(float64(seconds))
}

// SetEscaped publishes the current escapee count.
func SetEscaped(n int) {
	escapedNow.Set(float64(n))
}

// RecordWSConnection records WebSocket connection changes.
func RecordWSConnection(delta int) {
	wsConnections.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func RecordWSMessage(incoming bool) {
	if incoming {
		wsMessages.WithLabelValues("in").Inc()
	} else {
		wsMessages.WithLabelValues("out").Inc()
	}
}

// RecordUpstream records a superhero API call.
func RecordUpstream(endpoint string, err error) {
	upstreamRequests.WithLabelValues(endpoint, result(err)).Inc()
}

// RecordJournalWrite records an event persisted to the journal.
func RecordJournalWrite(err error) {
	journalWrites.WithLabelValues(result(err)).Inc()
}

// SetJournalBacklog reports how far the journal writer trails the event log.
func SetJournalBacklog(n int) {
	journalBacklog.Set(float64(n))
}

// RecordCacheLookup records a read from the upstream response cache.
func RecordCacheLookup(endpoint string, hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	cacheLookups.WithLabelValues(endpoint, r).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
