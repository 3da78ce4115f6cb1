package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error

	// FindByID returns domain.ErrNotFound when the product does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	List(ctx context.Context, activeOnly bool) ([]domain.Product, error)

	// IncrementStock adds quantity to on_hand regardless of the active flag
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error

	// DecrementStock atomically subtracts quantity from an active product,
	// returns false if on_hand is insufficient or the product is missing
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)

	Deactivate(ctx context.Context, id uuid.UUID) error
}

type OrderFilter struct {
	Status domain.OrderStatus
	Limit  int // 0 means no limit
}

type OrderRepository interface {
	// Create persists the order together with its items
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)

	// UpdateStatus writes status, shipping, refund and timestamp fields
	UpdateStatus(ctx context.Context, order *domain.Order) error
}

type ShipmentRepository interface {
	Create(ctx context.Context, shipment *domain.Shipment) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Shipment, error)
	OrderIDs(ctx context.Context) (map[uuid.UUID]bool, error)
}

type RefundRepository interface {
	Create(ctx context.Context, refund *domain.Refund) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Refund, error)
	OrderIDs(ctx context.Context) (map[uuid.UUID]bool, error)
}

type InboundRepository interface {
	Create(ctx context.Context, inbound *domain.Inbound) error
}

type MovementRepository interface {
	Create(ctx context.Context, movement *domain.StockMovement) error

	// SumByProduct returns the net movement quantity per product
	SumByProduct(ctx context.Context) (map[uuid.UUID]int, error)
}

type LedgerRepository interface {
	// Append assigns Seq and the running Balance to entry and stores it.
	// Appends are serialized through the ledger head row.
	Append(ctx context.Context, entry *domain.CashbookTransaction) error

	// Head returns the balance and sequence recorded on the ledger head
	Head(ctx context.Context) (balance int64, seq int64, err error)

	// Latest returns the newest entry, nil when the ledger is empty
	Latest(ctx context.Context) (*domain.CashbookTransaction, error)

	// Sum returns the total of all amounts and the number of entries
	Sum(ctx context.Context) (total int64, count int64, err error)

	// List returns entries newest first
	List(ctx context.Context, limit int) ([]domain.CashbookTransaction, error)
}

// Repositories groups the repositories that share one transaction.
type Repositories interface {
	Products() ProductRepository
	Orders() OrderRepository
	Shipments() ShipmentRepository
	Refunds() RefundRepository
	Inbounds() InboundRepository
	Movements() MovementRepository
	Ledger() LedgerRepository
}

type TransactionScope interface {
	// Execute runs fn in one transaction: committed when fn returns nil,
	// rolled back otherwise
	Execute(ctx context.Context, fn func(repos Repositories) error) error

	// ExecuteReadOnly runs fn against a consistent read-only view
	ExecuteReadOnly(ctx context.Context, fn func(repos Repositories) error) error
}
