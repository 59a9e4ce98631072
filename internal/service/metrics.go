package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexttale_reader_transitions_total",
		Help: "Choice follow-throughs by outcome.",
	}, []string{"outcome"})

	resolutionWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexttale_resolution_wait_seconds",
		Help:    "Time spent waiting for a placeholder to be resolved by a worker.",
		Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 12, 20},
	}, []string{"resolved"})

	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexttale_generations_total",
		Help: "Story text generations by result.",
	}, []string{"result"})

	assetJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexttale_asset_jobs_total",
		Help: "Background asset jobs by kind and status.",
	}, []string{"kind", "status"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nexttale_reader_sessions_active",
		Help: "Reader sessions currently held in memory.",
	})
)

func observeWait(started time.Time, resolved bool) {
	label := "false"
	if resolved {
		label = "true"
	}
	resolutionWaitSeconds.WithLabelValues(label).Observe(time.Since(started).Seconds())
}
