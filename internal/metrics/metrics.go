// Package metrics holds the Prometheus collectors of the messaging engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "portalchat"

// Metrics groups the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	ConversationsCreated *prometheus.CounterVec
	MessagesAppended     *prometheus.CounterVec
	MessagesRead         prometheus.Counter
	RepliesCancelled     prometheus.Counter
	RepliesDropped       prometheus.Counter
	PendingReplies       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConversationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_created_total",
			Help:      "Conversations created, by kind (direct or group).",
		}, []string{"kind"}),
		MessagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages appended, by origin (sent or reply).",
		}, []string{"origin"}),
		MessagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_read_total",
			Help:      "Messages marked read by opening a conversation.",
		}),
		RepliesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_cancelled_total",
			Help:      "Simulated replies cancelled by teardown before firing.",
		}),
		RepliesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_dropped_total",
			Help:      "Simulated replies that fired against a closed engine or missing conversation.",
		}),
		PendingReplies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_replies",
			Help:      "Simulated replies waiting for their delay to elapse.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ConversationsCreated,
			m.MessagesAppended,
			m.MessagesRead,
			m.RepliesCancelled,
			m.RepliesDropped,
			m.PendingReplies,
		)
	}
	return m
}

// ConversationCreated counts a new conversation.
func (m *Metrics) ConversationCreated(direct bool) {
	if m == nil {
		return
	}
	kind := "group"
	if direct {
		kind = "direct"
	}
	m.ConversationsCreated.WithLabelValues(kind).Inc()
}

// MessageAppended counts an appended message. reply distinguishes simulated replies.
func (m *Metrics) MessageAppended(reply bool) {
	if m == nil {
		return
	}
	origin := "sent"
	if reply {
		origin = "reply"
	}
	m.MessagesAppended.WithLabelValues(origin).Inc()
}

// Read counts n messages marked read.
func (m *Metrics) Read(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesRead.Add(float64(n))
}

// Cancelled counts n replies cancelled by teardown.
func (m *Metrics) Cancelled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RepliesCancelled.Add(float64(n))
}

// Dropped counts a reply that fired after teardown.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.RepliesDropped.Inc()
}

// Pending returns the pending-replies gauge, or nil.
func (m *Metrics) Pending() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.PendingReplies
}
