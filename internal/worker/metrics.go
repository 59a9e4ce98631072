package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const jobName = "nexttale_pregeneration_worker"

var (
	// Worker metrics live in their own registry so they can be pushed as a group.
	registry = prometheus.NewRegistry()

	tasksReceived = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "nexttale_pregeneration_tasks_received_total",
		Help: "Pre-generation tasks received by the worker.",
	})
	tasksSucceeded = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "nexttale_pregeneration_tasks_succeeded_total",
		Help: "Pre-generation tasks that resolved their placeholder.",
	})
	tasksSkipped = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "nexttale_pregeneration_tasks_skipped_total",
		Help: "Pre-generation tasks with nothing to do, by reason.",
	}, []string{"reason"})
	tasksFailed = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "nexttale_pregeneration_tasks_failed_total",
		Help: "Pre-generation tasks that failed, by reason.",
	}, []string{"reason"})
	taskDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "nexttale_pregeneration_task_duration_seconds",
		Help:    "Time spent handling one pre-generation task.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})
	generationAttempts = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "nexttale_pregeneration_attempts_total",
		Help: "Generation attempts made by the worker, by status.",
	}, []string{"status"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the worker registry for the /metrics endpoint.
func Registry() *prometheus.Registry {
	return registry
}

// MetricsPusher periodically pushes the worker registry to a Pushgateway.
type MetricsPusher struct {
	pusher *push.Pusher
	logger *zap.Logger
}

// NewMetricsPusher checks the gateway with an initial push.
func NewMetricsPusher(gatewayURL, instanceID string, logger *zap.Logger) (*MetricsPusher, error) {
	log := logger.Named("MetricsPusher")
	pusher := push.New(gatewayURL, jobName).Gatherer(registry).Grouping("instance", instanceID)
	if err := pusher.Push(); err != nil {
		return nil, fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	log.Info("Pushgateway reachable", zap.String("url", gatewayURL), zap.String("instance", instanceID))
	return &MetricsPusher{pusher: pusher, logger: log}, nil
}

// Run pushes every interval until ctx is done, then deletes this instance's group.
func (p *MetricsPusher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := p.pusher.Delete(); err != nil {
				p.logger.Warn("Failed to delete metrics from Pushgateway", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := p.pusher.Push(); err != nil {
				p.logger.Warn("Failed to push metrics", zap.Error(err))
			}
		}
	}
}
