// Package prometheus bridges the engine's in-process metrics to a
// Prometheus registry via a custom Collector. Counters are read from a
// MetricsSnapshot on every scrape; nothing is pushed and no goroutines run.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	trackauth "github.com/MrEthical07/trackauth"
)

// Source is anything that can produce a metrics snapshot, normally a
// *trackauth.Engine.
type Source interface {
	MetricsSnapshot() trackauth.MetricsSnapshot
}

type counterDef struct {
	id   trackauth.MetricID
	desc *prometheus.Desc
}

// Histogram bucket upper bounds in seconds, matching the engine's
// millisecond buckets. The last engine bucket maps to +Inf.
var latencyBounds = []float64{0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500}

// Collector implements prometheus.Collector over an engine snapshot.
type Collector struct {
	source       Source
	counters     []counterDef
	checkLatency *prometheus.Desc
}

// NewCollector wires a snapshot source into a Prometheus collector.
func NewCollector(source Source) *Collector {
	def := func(id trackauth.MetricID, name, help string) counterDef {
		return counterDef{id: id, desc: prometheus.NewDesc(name, help, nil, nil)}
	}

	return &Collector{
		source: source,
		counters: []counterDef{
			def(trackauth.MetricLoginSuccess, "trackauth_login_success_total", "Successful authentications."),
			def(trackauth.MetricLoginFailure, "trackauth_login_failure_total", "Rejected credentials."),
			def(trackauth.MetricLoginLocked, "trackauth_login_locked_total", "Logins rejected by lockout."),
			def(trackauth.MetricRefreshSuccess, "trackauth_refresh_success_total", "Successful token rotations."),
			def(trackauth.MetricRefreshFailure, "trackauth_refresh_failure_total", "Rejected refresh attempts."),
			def(trackauth.MetricRefreshReplay, "trackauth_refresh_replay_total", "Refresh attempts with a blacklisted token."),
			def(trackauth.MetricLogout, "trackauth_logout_total", "Completed logouts."),
			def(trackauth.MetricLogoutAll, "trackauth_logout_all_total", "Completed logout-all operations."),
			def(trackauth.MetricPasswordChangeSuccess, "trackauth_password_change_success_total", "Completed password changes."),
			def(trackauth.MetricPasswordChangeFailure, "trackauth_password_change_failure_total", "Rejected password changes."),
			def(trackauth.MetricCheckSuccess, "trackauth_check_success_total", "Access tokens admitted."),
			def(trackauth.MetricCheckRejected, "trackauth_check_rejected_total", "Access tokens rejected."),
			def(trackauth.MetricStoreDegraded, "trackauth_store_degraded_total", "Best-effort store writes that failed."),
		},
		checkLatency: prometheus.NewDesc(
			"trackauth_check_duration_seconds",
			"CheckAccessToken latency.",
			nil, nil,
		),
	}
}

// Describe sends every metric descriptor.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range c.counters {
		ch <- def.desc
	}
	ch <- c.checkLatency
}

// Collect reads one snapshot and emits const metrics from it.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for _, def := range c.counters {
		ch <- prometheus.MustNewConstMetric(def.desc, prometheus.CounterValue, float64(snap.Counters[def.id]))
	}

	raw, ok := snap.Histograms[trackauth.MetricCheckLatency]
	if !ok || len(raw) != len(latencyBounds)+1 {
		return
	}

	buckets := make(map[float64]uint64, len(latencyBounds))
	var count uint64
	var sum float64
	cumulative := uint64(0)
	for i, bound := range latencyBounds {
		cumulative += raw[i]
		buckets[bound] = cumulative
		// Sum is approximated from bucket upper bounds; the engine does
		// not track exact totals.
		sum += float64(raw[i]) * bound
	}
	count = cumulative + raw[len(latencyBounds)]
	sum += float64(raw[len(latencyBounds)]) * 1.0

	ch <- prometheus.MustNewConstHistogram(c.checkLatency, count, sum, buckets)
}

// Handler registers the collector in a fresh registry and returns a scrape
// handler, for hosts that do not manage their own registry.
func Handler(source Source) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
