package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_api_requests_total",
			Help: "Total number of API requests by method, outcome and status class",
		},
		[]string{"method", "outcome", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Presenter metrics
	ErrorsPresented = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_errors_presented_total",
			Help: "Total number of errors presented to the user by resolved code",
		},
		[]string{"code"},
	)

	PresenterUnavailable = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_presenter_unavailable_total",
			Help: "Total number of errors that could not be shown in a modal",
		},
	)

	ForcedLogouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_forced_logouts_total",
			Help: "Total number of sessions cleared because the server rejected them",
		},
	)

	// Router metrics
	ModuleLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_module_loads_total",
			Help: "Total number of lazy view module loads by module and result",
		},
		[]string{"module", "result"},
	)

	Navigations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_navigations_total",
			Help: "Total number of navigation requests by outcome",
		},
		[]string{"outcome"},
	)

	// Development API metrics
	MockRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_mockapi_requests_total",
			Help: "Total number of requests served by the development API by route and status",
		},
		[]string{"route", "status"},
	)

	// Listing metrics
	StaleResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_stale_responses_total",
			Help: "Total number of listing responses discarded as superseded",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ErrorsPresented)
	prometheus.MustRegister(PresenterUnavailable)
	prometheus.MustRegister(ForcedLogouts)
	prometheus.MustRegister(ModuleLoads)
	prometheus.MustRegister(Navigations)
	prometheus.MustRegister(StaleResponses)
	prometheus.MustRegister(MockRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDurationVec records the elapsed time on h with the given labels
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
