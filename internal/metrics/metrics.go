package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the prometheus collectors used across the bot.
type Metrics struct {
	registry *prometheus.Registry

	SlotResolutions *prometheus.CounterVec
	ResolveLatency  *prometheus.HistogramVec
	TomitaRequests  *prometheus.CounterVec
	FAQLookups      *prometheus.CounterVec
	ChitChatCalls   *prometheus.CounterVec
	DialogTurns     *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

// New registers all collectors under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := func(name, help string, labels ...string) *prometheus.CounterVec {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
		registry.MustRegister(vec)
		return vec
	}

	m := &Metrics{
		registry:        registry,
		SlotResolutions: factory("slot_resolutions_total", "Slot resolution outcomes.", "slot", "outcome"),
		TomitaRequests:  factory("tomita_requests_total", "External recognizer invocations.", "status"),
		FAQLookups:      factory("faq_lookups_total", "FAQ lookup outcomes.", "outcome"),
		ChitChatCalls:   factory("chitchat_calls_total", "Chit-chat service calls.", "status"),
		DialogTurns:     factory("dialog_turns_total", "Dialog turns by response branch.", "branch"),
		Errors:          factory("errors_total", "Errors by component.", "component"),
	}

	m.ResolveLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "slot_resolve_duration_seconds",
		Help:      "Slot resolution latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"slot"})
	registry.MustRegister(m.ResolveLatency)

	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
