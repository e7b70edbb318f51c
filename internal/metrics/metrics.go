// Package metrics owns the prometheus registry of the API.
package metrics

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "luvo"

// Metrics holds the domain collectors and the fiber HTTP middleware, all
// bound to one registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry
	http     *fiberprometheus.FiberPrometheus

	LikesTotal    prometheus.Counter
	MatchesTotal  prometheus.Counter
	FeedServed    prometheus.Counter
	Notifications *prometheus.CounterVec
	StorageOps    *prometheus.HistogramVec
	JobRuns       *prometheus.CounterVec
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		http:     fiberprometheus.NewWithRegistry(reg, service, namespace, "http", nil),

		LikesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_total",
			Help:      "Likes newly recorded",
		}),
		MatchesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matches newly created",
		}),
		FeedServed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_candidates_served_total",
			Help:      "Candidates returned by the feed",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Telegram notifications by kind and outcome",
		}, []string{"kind", "status"}),
		StorageOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_op_duration_seconds",
			Help:      "Object storage call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job runs by job and outcome",
		}, []string{"job", "status"}),
	}
}

// Mount installs the request middleware and exposes path on app.
func (m *Metrics) Mount(app *fiber.App, path string) {
	m.http.RegisterAt(app, path)
	app.Use(m.http.Middleware)
}
