package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics for sessiond. It implements
// service.MetricsRecorder.
type Metrics struct {
	StateSaves         prometheus.Counter
	StateConsumes      *prometheus.CounterVec
	SessionsIssued     prometheus.Counter
	SessionRefreshes   *prometheus.CounterVec
	SessionRevocations prometheus.Counter
	SecuritySignals    *prometheus.CounterVec
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers against an explicit registerer; tests
// pass a fresh registry to avoid duplicate-registration panics.
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StateSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessiond_oauth_state_saves_total",
			Help: "Total number of OAuth state records written.",
		}),
		StateConsumes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiond_oauth_state_consumes_total",
			Help: "Total number of OAuth state consume attempts by result.",
		}, []string{"result"}),
		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessiond_sessions_issued_total",
			Help: "Total number of sessions issued.",
		}),
		SessionRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiond_session_refreshes_total",
			Help: "Total number of session refresh attempts by result.",
		}, []string{"result"}),
		SessionRevocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessiond_session_revocations_total",
			Help: "Total number of sessions revoked.",
		}),
		SecuritySignals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sessiond_security_signals_total",
			Help: "Total number of security-signal events by type.",
		}, []string{"event_type"}),
	}
}

// RecordStateSave counts an OAuth state write.
func (m *Metrics) RecordStateSave() {
	m.StateSaves.Inc()
}

// RecordStateConsume counts a consume attempt; result is "consumed" or
// "absent".
func (m *Metrics) RecordStateConsume(result string) {
	m.StateConsumes.WithLabelValues(result).Inc()
}

// RecordSessionIssued counts a session issuance.
func (m *Metrics) RecordSessionIssued() {
	m.SessionsIssued.Inc()
}

// RecordSessionRefresh counts a refresh attempt; result is "ok", "invalid",
// or "error".
func (m *Metrics) RecordSessionRefresh(result string) {
	m.SessionRefreshes.WithLabelValues(result).Inc()
}

// RecordSessionRevocations counts revoked sessions.
func (m *Metrics) RecordSessionRevocations(count int64) {
	m.SessionRevocations.Add(float64(count))
}

// RecordSecuritySignal counts a security-signal event.
func (m *Metrics) RecordSecuritySignal(eventType string) {
	m.SecuritySignals.WithLabelValues(eventType).Inc()
}
