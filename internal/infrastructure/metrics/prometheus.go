// Package metrics exports workflow metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

const namespace = "yuandi"

// Prometheus implements port.Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lowStockTotal     *prometheus.CounterVec
	integrityStatus   *prometheus.GaugeVec
	integrityIssues   prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Workflow operations by outcome.",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Workflow operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		lowStockTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Products observed at or below their low stock threshold.",
		}, []string{"sku"}),
		integrityStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrity_ok",
			Help:      "1 when the last integrity check passed for the area, 0 otherwise.",
		}, []string{"area"}),
		integrityIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrity_issues",
			Help:      "Number of issues found by the last integrity check.",
		}),
	}

	p.registry.MustRegister(
		p.operationsTotal,
		p.operationDuration,
		p.lowStockTotal,
		p.integrityStatus,
		p.integrityIssues,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveOperation(op string, d time.Duration, err error) {
	p.operationsTotal.WithLabelValues(op, outcome(err)).Inc()
	p.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prometheus) LowStock(sku string) {
	p.lowStockTotal.WithLabelValues(sku).Inc()
}

func (p *Prometheus) SetIntegrity(r domain.IntegrityReport) {
	p.integrityStatus.WithLabelValues("inventory").Set(boolGauge(r.Inventory))
	p.integrityStatus.WithLabelValues("cashbook").Set(boolGauge(r.Cashbook))
	p.integrityStatus.WithLabelValues("orders").Set(boolGauge(r.Orders))
	p.integrityStatus.WithLabelValues("overall").Set(boolGauge(r.Overall))
	p.integrityIssues.Set(float64(len(r.Issues)))
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// outcome labels an error by its domain code, "ok" on success and
// "internal" for anything else.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal"
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var _ port.Metrics = (*Prometheus)(nil)
