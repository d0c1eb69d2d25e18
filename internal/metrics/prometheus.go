package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for RequestsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeHTTPError    = "http_error"
	OutcomeNetworkError = "network_error"
	OutcomeRetried      = "retried"
)

// Result labels for RefreshesTotal.
const (
	RefreshSucceeded = "succeeded"
	RefreshFailed    = "failed"
	RefreshShared    = "shared"
)

// Metrics holds the collectors of the authenticated request pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RefreshesTotal      *prometheus.CounterVec
	SessionsTerminated  prometheus.Counter
	CorruptSessionReads prometheus.Counter
	RefreshDuration     prometheus.Histogram
}

// New creates the collectors and registers them with reg when reg is not nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_client_requests_total",
			Help: "Total number of outbound API requests by outcome.",
		}, []string{"outcome"}),
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_client_token_refreshes_total",
			Help: "Total number of access token refreshes by result.",
		}, []string{"result"}),
		SessionsTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_client_sessions_terminated_total",
			Help: "Total number of sessions destroyed after an irrecoverable refresh failure.",
		}),
		CorruptSessionReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_client_corrupt_session_reads_total",
			Help: "Total number of stored session values that could not be decoded.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_client_token_refresh_duration_seconds",
			Help:    "Duration of token refresh calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.RequestsTotal, m.RefreshesTotal, m.SessionsTerminated, m.CorruptSessionReads, m.RefreshDuration,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(result string, seconds float64) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(result).Inc()
	if result != RefreshShared {
		m.RefreshDuration.Observe(seconds)
	}
}

func (m *Metrics) SessionTerminated() {
	if m == nil {
		return
	}
	m.SessionsTerminated.Inc()
}

func (m *Metrics) CorruptRead() {
	if m == nil {
		return
	}
	m.CorruptSessionReads.Inc()
}
