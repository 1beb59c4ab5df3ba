package filemap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "writes_total",
		Help:      "Number of ranges recorded",
	})
	writtenBytesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "written_bytes_total",
		Help:      "Number of bytes whose provenance was recorded",
	})
	readsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "reads_total",
		Help:      "Number of provenance reads, by result",
	}, []string{"result"})
	fragmentsMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "read_fragments",
		Help:      "Number of fragments returned by successful reads",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	bufferGrowthMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "buffer_growths_total",
		Help:      "Number of times a read's fragment buffer doubled",
	})
	initsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "inits_total",
		Help:      "Number of filemap inits, by whether the tree was found or created",
	}, []string{"outcome"})
	conflictsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "replayfs",
		Subsystem: "filemap",
		Name:      "create_conflicts_total",
		Help:      "Number of creates rolled back because the identity was already registered",
	})
)
