package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code",
	}, []string{"route", "method", "status"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alerthub_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	ReportsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerthub_reports_created_total",
		Help: "Reports persisted",
	})
	UpdatesAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_report_updates_total",
		Help: "Report updates appended, by new status",
	}, []string{"status"})
	StoreRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_store_retries_total",
		Help: "Store operations retried after a transient failure",
	}, []string{"op"})
	FallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_aggregator_fallbacks_total",
		Help: "Aggregation queries answered with the sample dataset",
	}, []string{"query"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_cache_hits_total",
		Help: "Redis cache hits",
	}, []string{"namespace"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_cache_misses_total",
		Help: "Redis cache misses",
	}, []string{"namespace"})
	AdapterRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_adapter_requests_total",
		Help: "External search adapter calls",
	}, []string{"adapter"})
	AdapterFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_adapter_fail_total",
		Help: "External search adapter failures absorbed as empty results",
	}, []string{"adapter"})
	AdapterDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alerthub_adapter_duration_ms",
		Help:    "External search adapter call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"adapter"})
	AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerthub_auth_attempts_total",
		Help: "Signup and login attempts by outcome",
	}, []string{"action", "outcome"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(ReportsCreatedTotal)
	prometheus.MustRegister(UpdatesAppendedTotal)
	prometheus.MustRegister(StoreRetriesTotal)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(AdapterRequestsTotal)
	prometheus.MustRegister(AdapterFailTotal)
	prometheus.MustRegister(AdapterDurationMs)
	prometheus.MustRegister(AuthAttemptsTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
