// Package metrics holds the Prometheus instruments of the scene server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	graphLabel  = "graph"
	resultLabel = "result"
)

var (
	sceneObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_objects",
		Help: "The number of objects placed in a graph.",
	}, []string{graphLabel})

	sceneSubdivisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_subdivisions_total",
		Help: "The total number of node subdivisions.",
	}, []string{graphLabel})

	sceneMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_merges_total",
		Help: "The total number of subtrees merged back into their parent.",
	}, []string{graphLabel})

	sceneOutOfBounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_out_of_bounds_total",
		Help: "The total number of placements rejected because they left the graph bounds.",
	}, []string{graphLabel})

	scenePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_pending_mutations",
		Help: "The number of spawns and despawns waiting for the next flush.",
	})

	sceneFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_flushed_mutations_total",
		Help: "The total number of deferred mutations applied by flush, by result.",
	}, []string{resultLabel})

	sceneVisible = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_visible_objects",
		Help: "The number of objects inside the camera region last frame.",
	}, []string{graphLabel})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_frame_duration_seconds",
		Help:    "Wall time spent running one frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_snapshots_total",
		Help: "The total number of snapshot attempts, by result.",
	}, []string{resultLabel})
)

func SetObjects(graph string, n int) {
	sceneObjects.With(prometheus.Labels{graphLabel: graph}).Set(float64(n))
}

func CountSubdivision(graph string) {
	sceneSubdivisions.With(prometheus.Labels{graphLabel: graph}).Inc()
}

func CountMerge(graph string) {
	sceneMerges.With(prometheus.Labels{graphLabel: graph}).Inc()
}

func CountOutOfBounds(graph string) {
	sceneOutOfBounds.With(prometheus.Labels{graphLabel: graph}).Inc()
}

func SetPending(n int) {
	scenePending.Set(float64(n))
}

// CountFlushed records applied mutations; result is "added", "removed",
// "missing" or "rejected".
func CountFlushed(result string, n int) {
	if n == 0 {
		return
	}
	sceneFlushed.With(prometheus.Labels{resultLabel: result}).Add(float64(n))
}

func SetVisible(graph string, n int) {
	sceneVisible.With(prometheus.Labels{graphLabel: graph}).Set(float64(n))
}

func ObserveFrame(d time.Duration) {
	frameDuration.Observe(d.Seconds())
}

// CountSnapshot records a snapshot attempt; result is "saved", "unchanged"
// or "failed".
func CountSnapshot(result string) {
	snapshots.With(prometheus.Labels{resultLabel: result}).Inc()
}
