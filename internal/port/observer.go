package port

import (
	"time"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

// StockAlertPublisher receives products whose stock just went down.
type StockAlertPublisher interface {
	Publish(productID uuid.UUID)
}

type Metrics interface {
	ObserveOperation(op string, duration time.Duration, err error)
	LowStock(sku string)
	SetIntegrity(report domain.IntegrityReport)
}
