package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

type Option func(*base)

func WithMetrics(m port.Metrics) Option {
	return func(b *base) {
		if m != nil {
			b.metrics = m
		}
	}
}

func WithStockAlerts(p port.StockAlertPublisher) Option {
	return func(b *base) { b.alerts = p }
}

// WithClock overrides time.Now, used by tests to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	scope   port.TransactionScope
	logger  *zap.Logger
	metrics port.Metrics
	alerts  port.StockAlertPublisher
	now     func() time.Time
}

func newBase(scope port.TransactionScope, logger *zap.Logger, name string, opts []Option) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := base{
		scope:   scope,
		logger:  logger.Named(name),
		metrics: nopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// observe is deferred by every workflow operation with a pointer to its
// named error result.
func (b *base) observe(op string, start time.Time, err *error) {
	b.metrics.ObserveOperation(op, time.Since(start), *err)
}

func (b *base) publishStockChange(items []domain.OrderItem) {
	if b.alerts == nil {
		return
	}
	for _, it := range items {
		b.alerts.Publish(it.ProductID)
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, time.Duration, error) {}
func (nopMetrics) LowStock(string)                                {}
func (nopMetrics) SetIntegrity(domain.IntegrityReport)            {}
