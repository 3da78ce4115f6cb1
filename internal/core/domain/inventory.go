package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID                uuid.UUID
	SKU               string
	Name              string
	OnHand            int
	LowStockThreshold int
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLowStock reports whether the product is at or below its alert threshold.
func (p Product) IsLowStock() bool {
	return p.OnHand <= p.LowStockThreshold
}

type MovementType string

const (
	MovementInitial MovementType = "initial"
	MovementInbound MovementType = "inbound"
	MovementSale    MovementType = "sale"
	MovementRefund  MovementType = "refund"
)

// StockMovement is one append-only change to a product's on-hand count.
// Quantity is signed: positive for stock in, negative for stock out.
type StockMovement struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	Type        MovementType
	Quantity    int
	ReferenceID uuid.UUID
	CreatedAt   time.Time
}

func NewStockMovement(productID uuid.UUID, typ MovementType, quantity int, referenceID uuid.UUID) StockMovement {
	if typ == MovementSale && quantity > 0 {
		quantity = -quantity
	}
	return StockMovement{
		ID:          uuid.New(),
		ProductID:   productID,
		Type:        typ,
		Quantity:    quantity,
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}
}

// Inbound records a stock receipt from a supplier.
type Inbound struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Quantity      int
	CostCNY       decimal.Decimal // unit cost
	ExchangeRate  decimal.Decimal // KRW per CNY
	TotalCostKRW  int64
	Supplier      string
	InvoiceNumber string
	CreatedAt     time.Time
}

// ConvertCostKRW returns round(unitCostCNY * rate * quantity) in whole won.
// ok is false when the result is above MaxAmount.
func ConvertCostKRW(unitCostCNY, rate decimal.Decimal, quantity int) (krw int64, ok bool) {
	total := unitCostCNY.Mul(rate).Mul(decimal.NewFromInt(int64(quantity))).Round(0)
	if total.GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, false
	}
	return total.IntPart(), true
}
