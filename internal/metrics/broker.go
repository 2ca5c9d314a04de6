// ABOUTME: Prometheus collectors for the event broker
// ABOUTME: Connections, auth rejections, message kinds and fan-out
package metrics

import (
	"github.com/Sendspin/mixbus/pkg/broker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broker implements broker.Metrics
type Broker struct {
	Connections      prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	AuthRejections   prometheus.Counter
	Messages         *prometheus.CounterVec
	MalformedTotal   prometheus.Counter
	Deliveries       prometheus.Counter
	Drops            prometheus.Counter
	FanoutSize       prometheus.Histogram
}

var _ broker.Metrics = (*Broker)(nil)

// NewBroker creates and registers the broker collectors
func NewBroker(reg prometheus.Registerer) *Broker {
	factory := promauto.With(reg)

	return &Broker{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connections",
			Help:      "Current number of client connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_connections_total",
			Help:      "Total number of accepted connections",
		}),
		AuthRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_auth_rejections_total",
			Help:      "Connections closed for a bad secret",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_messages_total",
			Help:      "Client messages by type",
		}, []string{"type"}),
		MalformedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_malformed_messages_total",
			Help:      "Client messages ignored as malformed",
		}),
		Deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_deliveries_total",
			Help:      "Events queued to subscribers",
		}),
		Drops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_drops_total",
			Help:      "Events dropped because a subscriber queue was full",
		}),
		FanoutSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broker_fanout_subscribers",
			Help:      "Subscribers reached per emit",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

// ConnectionOpened records an accepted connection
func (b *Broker) ConnectionOpened() {
	b.Connections.Inc()
	b.ConnectionsTotal.Inc()
}

// ConnectionClosed records a closed connection
func (b *Broker) ConnectionClosed() {
	b.Connections.Dec()
}

// AuthRejected records a connection refused for its secret
func (b *Broker) AuthRejected() {
	b.AuthRejections.Inc()
}

// MessageReceived counts a valid client message
func (b *Broker) MessageReceived(msgType string) {
	b.Messages.WithLabelValues(msgType).Inc()
}

// Malformed counts an ignored client message
func (b *Broker) Malformed() {
	b.MalformedTotal.Inc()
}

// Fanout records one emit's deliveries
func (b *Broker) Fanout(delivered, dropped int) {
	b.Deliveries.Add(float64(delivered))
	b.Drops.Add(float64(dropped))
	b.FanoutSize.Observe(float64(delivered + dropped))
}
