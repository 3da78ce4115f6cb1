package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

// StockAlerter checks products whose stock went down and reports those at or
// below their threshold. Publish never blocks the workflow: when the queue is
// full the product is dropped with a warning.
type StockAlerter struct {
	base
	queue  chan uuid.UUID
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewStockAlerter(scope port.TransactionScope, logger *zap.Logger, queueSize int, opts ...Option) *StockAlerter {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &StockAlerter{
		base:  newBase(scope, logger, "stock_alerts", opts),
		queue: make(chan uuid.UUID, queueSize),
	}
}

func (a *StockAlerter) Publish(productID uuid.UUID) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- productID:
	default:
		a.logger.Warn("stock alert queue full, dropping", zap.String("product_id", productID.String()))
	}
}

func (a *StockAlerter) Start(workers int) {
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go func(id int) {
			defer a.wg.Done()
			a.workerLoop(id)
		}(i)
	}
	a.logger.Info("stock alert workers started", zap.Int("workers", workers))
}

// Close stops accepting alerts and waits for queued ones to drain.
func (a *StockAlerter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *StockAlerter) workerLoop(id int) {
	for productID := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		product, err := a.check(ctx, productID)
		cancel()

		if err != nil {
			a.logger.Error("stock alert check failed",
				zap.Int("worker", id),
				zap.String("product_id", productID.String()),
				zap.Error(err),
			)
			continue
		}
		if product != nil && product.Active && product.IsLowStock() {
			a.metrics.LowStock(product.SKU)
			a.logger.Warn("low stock",
				zap.Int("worker", id),
				zap.String("sku", product.SKU),
				zap.Int("on_hand", product.OnHand),
				zap.Int("threshold", product.LowStockThreshold),
			)
		}
	}
}

func (a *StockAlerter) check(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	var product *domain.Product
	err := a.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		product, err = repos.Products().FindByID(ctx, productID)
		return err
	})
	return product, err
}
