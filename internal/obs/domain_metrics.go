package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SessionEventsTotal counts emitted session events by topic.
	SessionEventsTotal *prometheus.CounterVec
	// CheckoutSubmitTotal counts order submissions by outcome.
	CheckoutSubmitTotal *prometheus.CounterVec
	// CheckoutPhaseTransitions counts checkout phase transitions.
	CheckoutPhaseTransitions *prometheus.CounterVec
	// ActiveCarts tracks the number of live session carts held in memory.
	ActiveCarts prometheus.Gauge
	// CartsSweptTotal counts session carts evicted by the idle sweeper.
	CartsSweptTotal prometheus.Counter
	// PromoCacheHits counts promo status lookups served from cache.
	PromoCacheHits prometheus.Counter
	// PromoCacheMisses counts promo status lookups that fell through to upstream.
	PromoCacheMisses prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SessionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Count of emitted session events by topic.",
		}, []string{"topic"})
		CheckoutSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submit_total",
			Help:      "Count of order submission outcomes.",
		}, []string{"result"})
		CheckoutPhaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_phase_transitions_total",
			Help:      "Count of checkout phase transitions.",
		}, []string{"from", "to"})
		ActiveCarts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_carts",
			Help:      "Number of live session carts held in memory.",
		})
		CartsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_swept_total",
			Help:      "Number of session carts evicted by the idle sweeper.",
		})
		PromoCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_cache_hits_total",
			Help:      "Promo status lookups served from cache.",
		})
		PromoCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_cache_misses_total",
			Help:      "Promo status lookups that fell through to the upstream API.",
		})

		mustRegisterCollector(reg, SessionEventsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SessionEventsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutPhaseTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutPhaseTransitions = v
			}
		})
		mustRegisterCollector(reg, ActiveCarts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				ActiveCarts = v
			}
		})
		mustRegisterCollector(reg, CartsSweptTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartsSweptTotal = v
			}
		})
		mustRegisterCollector(reg, PromoCacheHits, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PromoCacheHits = v
			}
		})
		mustRegisterCollector(reg, PromoCacheMisses, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PromoCacheMisses = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
