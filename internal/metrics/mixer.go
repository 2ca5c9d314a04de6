// ABOUTME: Prometheus collectors for the mixing engine
// ABOUTME: Tick timing, clipping, sink failures and lifecycle events
package metrics

import (
	"time"

	"github.com/Sendspin/mixbus/pkg/mixer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mixer implements mixer.Metrics
type Mixer struct {
	Ticks          prometheus.Counter
	TickDuration   prometheus.Histogram
	ActiveStreams  prometheus.Gauge
	Contributing   prometheus.Gauge
	ClippedSamples prometheus.Counter
	SilentFrames   prometheus.Counter
	SinkErrors     prometheus.Counter
	Events         *prometheus.CounterVec
}

var _ mixer.Metrics = (*Mixer)(nil)

// NewMixer creates and registers the mixer collectors
func NewMixer(reg prometheus.Registerer) *Mixer {
	factory := promauto.With(reg)

	return &Mixer{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mixer_ticks_total",
			Help:      "Total number of mix cycles",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mixer_tick_duration_seconds",
			Help:      "Time spent producing one mixed frame",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12), // 10µs to ~20ms
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mixer_streams",
			Help:      "Streams registered at the last tick",
		}),
		Contributing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mixer_contributing_streams",
			Help:      "Streams that contributed audio at the last tick",
		}),
		ClippedSamples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mixer_clipped_samples_total",
			Help:      "Samples saturated at the int16 limits",
		}),
		SilentFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mixer_silent_frames_total",
			Help:      "Frames written with no contributing stream",
		}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mixer_sink_errors_total",
			Help:      "Failed frame writes to the output sink",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mixer_events_total",
			Help:      "Lifecycle notifications by type",
		}, []string{"type"}),
	}
}

// ObserveTick records one mix cycle
func (m *Mixer) ObserveTick(streams, contributing, clipped int, elapsed time.Duration) {
	m.Ticks.Inc()
	m.TickDuration.Observe(elapsed.Seconds())
	m.ActiveStreams.Set(float64(streams))
	m.Contributing.Set(float64(contributing))
	if clipped > 0 {
		m.ClippedSamples.Add(float64(clipped))
	}
	if contributing == 0 {
		m.SilentFrames.Inc()
	}
}

// SinkError counts a failed frame write
func (m *Mixer) SinkError() {
	m.SinkErrors.Inc()
}

// Event counts a lifecycle notification
func (m *Mixer) Event(t mixer.EventType) {
	m.Events.WithLabelValues(string(t)).Inc()
}
