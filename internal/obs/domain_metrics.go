package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// LinksGeneratedTotal counts affiliate link generation outcomes.
	LinksGeneratedTotal *prometheus.CounterVec
	// ResolutionsTotal counts storefront token resolution outcomes.
	ResolutionsTotal *prometheus.CounterVec
	// AttributionsTotal counts order line attribution outcomes.
	AttributionsTotal *prometheus.CounterVec
	// SettlementsTotal counts order settlement outcomes.
	SettlementsTotal *prometheus.CounterVec
	// CommissionAmountTotal sums settled reseller commission in major currency units.
	CommissionAmountTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		LinksGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "affiliate_links_generated_total",
			Help:      "Count of affiliate link generation attempts by result.",
		}, []string{"result"})
		ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "affiliate_resolutions_total",
			Help:      "Count of affiliate token resolutions by outcome.",
		}, []string{"outcome"})
		AttributionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "affiliate_attributions_total",
			Help:      "Count of order line attribution attempts by result.",
		}, []string{"result"})
		SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "affiliate_settlements_total",
			Help:      "Count of completed order settlements by result.",
		}, []string{"result"})
		CommissionAmountTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "affiliate_commission_amount_total",
			Help:      "Sum of positive reseller commission settled, in major currency units.",
		})

		mustRegisterCollector(reg, LinksGeneratedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LinksGeneratedTotal = v
			}
		})
		mustRegisterCollector(reg, ResolutionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ResolutionsTotal = v
			}
		})
		mustRegisterCollector(reg, AttributionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				AttributionsTotal = v
			}
		})
		mustRegisterCollector(reg, SettlementsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettlementsTotal = v
			}
		})
		mustRegisterCollector(reg, CommissionAmountTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CommissionAmountTotal = v
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
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

func incVec(vec *prometheus.CounterVec, label string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(label).Inc()
}

// RecordLinkGenerated increments the link generation counter. Safe before registration.
func RecordLinkGenerated(result string) { incVec(LinksGeneratedTotal, result) }

// RecordResolution increments the token resolution counter.
func RecordResolution(outcome string) { incVec(ResolutionsTotal, outcome) }

// RecordAttribution increments the attribution counter.
func RecordAttribution(result string) { incVec(AttributionsTotal, result) }

// RecordSettlement increments the settlement counter.
func RecordSettlement(result string) { incVec(SettlementsTotal, result) }

// AddCommission adds a positive commission amount.
func AddCommission(amount float64) {
	if CommissionAmountTotal == nil || amount <= 0 {
		return
	}
	CommissionAmountTotal.Add(amount)
}
