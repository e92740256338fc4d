package octree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notargets/meshoctree/parallel"
)

const (
	rankLabel = "rank"
	kindLabel = "kind"
)

var (
	refinedCubes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshoctree_refined_cubes",
		Help: "The number of cubes split into eight children.",
	})

	regularityPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshoctree_regularity_passes",
		Help: "The number of 2:1 balance passes over the marked leaves.",
	})

	leavesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meshoctree_leaves",
		Help: "The number of leaves in the latest leaf list.",
	}, []string{
		rankLabel,
	})

	exchangedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshoctree_exchanged_records",
		Help: "The number of labelled records sent to other ranks.",
	}, []string{
		kindLabel,
	})
)

// countSent records the size of an outgoing exchange
func countSent[T any](c parallel.Codec[T], send map[int][]parallel.Record[T], me int) {
	n := 0
	for to, recs := range send {
		if to != me {
			n += len(recs)
		}
	}
	exchangedRecords.WithLabelValues(c.Name).Add(float64(n))
}
