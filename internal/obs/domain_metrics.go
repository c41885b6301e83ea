package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by operation (add, remove, clear).
	CartMutationsTotal *prometheus.CounterVec
	// CartStorageFailuresTotal counts degraded session-store operations by stage.
	CartStorageFailuresTotal *prometheus.CounterVec
	// CartListenerFailuresTotal counts listener invocations that panicked.
	CartListenerFailuresTotal prometheus.Counter
	// CheckoutRedirectsTotal counts checkout handoffs issued.
	CheckoutRedirectsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation.",
		}, []string{"op"}))
		CartStorageFailuresTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_storage_failures_total",
			Help:      "Count of degraded session-store operations by stage.",
		}, []string{"stage"}))
		CartListenerFailuresTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_listener_failures_total",
			Help:      "Number of cart listener invocations that panicked.",
		}))
		CheckoutRedirectsTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_redirects_total",
			Help:      "Number of checkout redirects issued.",
		}))
	})
}

// CountCartMutation increments the mutation counter when metrics are registered.
func CountCartMutation(op string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op).Inc()
	}
}

// CountCartStorageFailure increments the storage failure counter when metrics are registered.
func CountCartStorageFailure(stage string) {
	if CartStorageFailuresTotal != nil {
		CartStorageFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// CountCartListenerFailure increments the listener failure counter when metrics are registered.
func CountCartListenerFailure() {
	if CartListenerFailuresTotal != nil {
		CartListenerFailuresTotal.Inc()
	}
}

// CountCheckoutRedirect increments the redirect counter when metrics are registered.
func CountCheckoutRedirect() {
	if CheckoutRedirectsTotal != nil {
		CheckoutRedirectsTotal.Inc()
	}
}
