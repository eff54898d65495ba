package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pipecopy"

// QueueProbe reports the current queue depth and capacity.
type QueueProbe func() (depth, capacity int)

// Counts is a point-in-time copy of the pipeline counters.
type Counts struct {
	RecordsAccepted int64 `json:"records_accepted"`
	RecordsDropped  int64 `json:"records_dropped"`
	CopiesSucceeded int64 `json:"copies_succeeded"`
	CopiesFailed    int64 `json:"copies_failed"`
	BytesCopied     int64 `json:"bytes_copied"`
}

// Metrics holds the Prometheus collectors for one pipeline.
type Metrics struct {
	RecordsAccepted prometheus.Counter
	RecordsDropped  *prometheus.CounterVec
	Copies          *prometheus.CounterVec
	CopyBytes       prometheus.Counter
	CopyDuration    prometheus.Histogram

	probe atomic.Pointer[QueueProbe]

	accepted  atomic.Int64
	dropped   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	bytes     atomic.Int64
}

// New registers the pipeline collectors with reg. A nil reg uses a private
// registry so tests and embedded pipelines never collide.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{
		RecordsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Paths read from the transport and queued for copying",
		}),
		RecordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Transport records discarded before queueing",
		}, []string{"reason"}),
		Copies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copies_total",
			Help:      "File copies attempted, by outcome",
		}, []string{"outcome", "error_kind"}),
		CopyBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_bytes_total",
			Help:      "Bytes written to the destination directory",
		}),
		CopyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "copy_duration_seconds",
			Help:      "Time spent copying a single file",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60},
		}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Paths waiting in the handoff queue",
	}, func() float64 {
		depth, _ := m.queue()
		return float64(depth)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the handoff queue",
	}, func() float64 {
		_, capacity := m.queue()
		return float64(capacity)
	})
	return m
}

// SetQueueProbe attaches the queue gauges to a live queue. Passing nil
// detaches them.
func (m *Metrics) SetQueueProbe(probe QueueProbe) {
	if probe == nil {
		m.probe.Store(nil)
		return
	}
	m.probe.Store(&probe)
}

func (m *Metrics) queue() (int, int) {
	if p := m.probe.Load(); p != nil {
		return (*p)()
	}
	return 0, 0
}

// RecordAccepted counts a record handed to the queue.
func (m *Metrics) RecordAccepted() {
	m.accepted.Add(1)
	m.RecordsAccepted.Inc()
}

// RecordDropped counts a record discarded by the listener.
func (m *Metrics) RecordDropped(reason string) {
	m.dropped.Add(1)
	m.RecordsDropped.WithLabelValues(reason).Inc()
}

// CopySucceeded counts a completed copy.
func (m *Metrics) CopySucceeded(bytes int64, elapsed time.Duration) {
	m.succeeded.Add(1)
	m.bytes.Add(bytes)
	m.Copies.WithLabelValues("copied", "").Inc()
	m.CopyBytes.Add(float64(bytes))
	m.CopyDuration.Observe(elapsed.Seconds())
}

// CopyFailed counts a failed copy labelled with its failure kind.
func (m *Metrics) CopyFailed(kind string, elapsed time.Duration) {
	m.failed.Add(1)
	m.Copies.WithLabelValues("failed", kind).Inc()
	m.CopyDuration.Observe(elapsed.Seconds())
}

// Snapshot returns the current counter totals.
func (m *Metrics) Snapshot() Counts {
	return Counts{
		RecordsAccepted: m.accepted.Load(),
		RecordsDropped:  m.dropped.Load(),
		CopiesSucceeded: m.succeeded.Load(),
		CopiesFailed:    m.failed.Load(),
		BytesCopied:     m.bytes.Load(),
	}
}
