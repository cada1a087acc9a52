package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	joinRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giveaway_join_requests_total",
		Help: "Join attempts grouped by outcome",
	}, []string{"status"})

	drawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giveaway_draws_total",
		Help: "Draw attempts grouped by trigger and outcome",
	}, []string{"trigger", "status"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "giveaway_sweep_duration_seconds",
		Help:    "Time spent on one deadline sweep",
		Buckets: prometheus.DefBuckets,
	})

	retentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giveaway_retention_deleted_total",
		Help: "Terminal lotteries removed by the retention sweep",
	})
)

func ObserveJoin(status string) {
	joinRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveDraw(trigger, status string) {
	drawsTotal.WithLabelValues(trigger, status).Inc()
}

func ObserveSweepDuration(seconds float64) {
	sweepDuration.Observe(seconds)
}

func AddRetentionDeleted(n float64) {
	retentionDeletedTotal.Add(n)
}
