package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered: {OrderStatusRefunded},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order in status s may move to next.
// Refunded is terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID uuid.UUID
	Quantity  int
	Price     int64
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	CustomerName    string
	CustomerPhone   string
	PCCC            string
	ShippingAddress string
	Status          OrderStatus
	TotalAmount     int64
	ShippingFee     int64
	Courier         string
	TrackingNumber  string
	RefundReason    string
	Items           []OrderItem
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	RefundedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TransitionTo moves the order to next, stamping the matching timestamp.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return NewDomainError(CodeInvalidState,
			fmt.Sprintf("order %s cannot move from %s to %s", o.OrderNumber, o.Status, next))
	}
	switch next {
	case OrderStatusShipped:
		o.ShippedAt = &at
	case OrderStatusDelivered:
		o.DeliveredAt = &at
	case OrderStatusRefunded:
		o.RefundedAt = &at
	}
	o.Status = next
	o.UpdatedAt = at
	return nil
}

// LineTotal is quantity * price. ok is false when it would exceed MaxAmount.
func (it OrderItem) LineTotal() (total int64, ok bool) {
	if it.Quantity <= 0 || it.Price <= 0 {
		return 0, it.Price >= 0
	}
	if it.Price > MaxAmount/int64(it.Quantity) {
		return 0, false
	}
	return int64(it.Quantity) * it.Price, true
}

// ItemsSubtotal sums quantity * price over all lines. Lines are expected to
// be validated against MaxAmount already.
func (o Order) ItemsSubtotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Quantity) * it.Price
	}
	return total
}

// MergeItems folds lines for the same product together and sorts them by
// product id so that stock rows are always locked in the same order. Lines
// for one product must share a price; the first line's price is kept.
func MergeItems(items []OrderItem) []OrderItem {
	byProduct := make(map[uuid.UUID]int, len(items))
	merged := make([]OrderItem, 0, len(items))
	for _, it := range items {
		if idx, ok := byProduct[it.ProductID]; ok {
			merged[idx].Quantity += it.Quantity
			continue
		}
		byProduct[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	sort.Slice(merged, func(i, j int) bool {
		return strings.Compare(merged[i].ProductID.String(), merged[j].ProductID.String()) < 0
	})
	return merged
}

type Shipment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Courier        string
	TrackingNumber string
	ShippingFee    int64
	ShippedAt      time.Time
}

type Refund struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Reason         string
	Amount         int64
	RefundFee      int64
	ShippingRefund int64
	CreatedAt      time.Time
}

// GenerateOrderNumber returns ORD-YYYYMMDD-XXXXXXXX.
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
