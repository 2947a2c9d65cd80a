package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PagesTotal          *prometheus.CounterVec   // status: ok, empty, failed
	ReviewsTotal        prometheus.Counter
	PageFetchDuration   prometheus.Histogram
	CrawlDuration       *prometheus.HistogramVec // outcome: success, failure
	FailuresTotal       *prometheus.CounterVec

	initOnce sync.Once
)

// Init registers every collector on reg. Only the first call has an effect.
func Init(reg prometheus.Registerer) {
	initOnce.Do(func() {
		factory := promauto.With(reg)

		HTTPRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		)

		HTTPRequestDuration = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		PagesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_pages_total",
				Help: "Total number of listing pages fetched.",
			},
			[]string{"status"},
		)

		ReviewsTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_reviews_total",
				Help: "Total number of reviews extracted.",
			},
		)

		PageFetchDuration = factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawl_page_fetch_duration_seconds",
				Help:    "Time to load a listing page until the network settled.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		CrawlDuration = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_duration_seconds",
				Help:    "Duration of complete crawl runs.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		)

		FailuresTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_failures_total",
				Help: "Total number of failed page fetches.",
			},
			[]string{"error_type"},
		)
	})
}

// WriteTextfile dumps everything gathered by g in the node_exporter
// textfile format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
