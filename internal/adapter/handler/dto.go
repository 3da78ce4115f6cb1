package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

type RegisterProductRequest struct {
	SKU               string `json:"sku" binding:"required,max=64"`
	Name              string `json:"name" binding:"required,max=255"`
	InitialStock      int    `json:"initial_stock" binding:"gte=0,lte=2147483647"`
	LowStockThreshold int    `json:"low_stock_threshold" binding:"gte=0"`
}

type ProductResponse struct {
	ID                uuid.UUID `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	OnHand            int       `json:"on_hand"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Active            bool      `json:"active"`
	LowStock          bool      `json:"low_stock"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:                p.ID,
		SKU:               p.SKU,
		Name:              p.Name,
		OnHand:            p.OnHand,
		LowStockThreshold: p.LowStockThreshold,
		Active:            p.Active,
		LowStock:          p.IsLowStock(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toProductResponses(ps []domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductResponse(p))
	}
	return out
}

// InboundRequest takes either total_cost_krw or cost_cny with exchange_rate;
// the total is computed when omitted.
type InboundRequest struct {
	ProductID     string          `json:"product_id" binding:"required,uuid"`
	Quantity      int             `json:"quantity" binding:"required,gt=0,lte=2147483647"`
	CostCNY       decimal.Decimal `json:"cost_cny"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	TotalCostKRW  int64           `json:"total_cost_krw" binding:"gte=0,lte=1000000000000000"`
	Supplier      string          `json:"supplier" binding:"max=255"`
	InvoiceNumber string          `json:"invoice_number" binding:"max=64"`
}

type InboundResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      int             `json:"quantity"`
	CostCNY       decimal.Decimal `json:"cost_cny"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	TotalCostKRW  int64           `json:"total_cost_krw"`
	Supplier      string          `json:"supplier"`
	InvoiceNumber string          `json:"invoice_number"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toInboundResponse(in *domain.Inbound) InboundResponse {
	return InboundResponse{
		ID:            in.ID,
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		CostCNY:       in.CostCNY,
		ExchangeRate:  in.ExchangeRate,
		TotalCostKRW:  in.TotalCostKRW,
		Supplier:      in.Supplier,
		InvoiceNumber: in.InvoiceNumber,
		CreatedAt:     in.CreatedAt,
	}
}

type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,gt=0,lte=2147483647"`
	Price     int64  `json:"price" binding:"gte=0,lte=1000000000000000"`
}

type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name" binding:"required,max=255"`
	CustomerPhone   string             `json:"customer_phone" binding:"max=32"`
	PCCC            string             `json:"pccc" binding:"max=32"`
	ShippingAddress string             `json:"shipping_address"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount     int64              `json:"total_amount" binding:"gte=0,lte=1000000000000000"`
	ShippingFee     int64              `json:"shipping_fee" binding:"gte=0,lte=1000000000000000"`
}

type OrderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone,omitempty"`
	PCCC            string              `json:"pccc,omitempty"`
	ShippingAddress string              `json:"shipping_address,omitempty"`
	Status          domain.OrderStatus  `json:"status"`
	TotalAmount     int64               `json:"total_amount"`
	ShippingFee     int64               `json:"shipping_fee"`
	Courier         string              `json:"courier,omitempty"`
	TrackingNumber  string              `json:"tracking_number,omitempty"`
	RefundReason    string              `json:"refund_reason,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	RefundedAt      *time.Time          `json:"refunded_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		PCCC:            o.PCCC,
		ShippingAddress: o.ShippingAddress,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		ShippingFee:     o.ShippingFee,
		Courier:         o.Courier,
		TrackingNumber:  o.TrackingNumber,
		RefundReason:    o.RefundReason,
		Items:           items,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		RefundedAt:      o.RefundedAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type ShipOrderRequest struct {
	CourierCompany string    `json:"courier_company" binding:"required,max=64"`
	TrackingNumber string    `json:"tracking_number" binding:"required,max=64"`
	ShippingFee    int64     `json:"shipping_fee" binding:"gte=0,lte=1000000000000000"`
	ShippingDate   time.Time `json:"shipping_date"`
}

type ShipmentResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	CourierCompany string    `json:"courier_company"`
	TrackingNumber string    `json:"tracking_number"`
	ShippingFee    int64     `json:"shipping_fee"`
	ShippedAt      time.Time `json:"shipped_at"`
}

func toShipmentResponse(s *domain.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:             s.ID,
		OrderID:        s.OrderID,
		CourierCompany: s.Courier,
		TrackingNumber: s.TrackingNumber,
		ShippingFee:    s.ShippingFee,
		ShippedAt:      s.ShippedAt,
	}
}

type RefundOrderRequest struct {
	Reason         string `json:"reason" binding:"required"`
	RefundAmount   int64  `json:"refund_amount" binding:"gte=0,lte=1000000000000000"`
	RefundFee      int64  `json:"refund_fee" binding:"gte=0,lte=1000000000000000"`
	ShippingRefund int64  `json:"shipping_refund" binding:"gte=0,lte=1000000000000000"`
}

type RefundResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	Reason         string    `json:"reason"`
	RefundAmount   int64     `json:"refund_amount"`
	RefundFee      int64     `json:"refund_fee"`
	ShippingRefund int64     `json:"shipping_refund"`
	CreatedAt      time.Time `json:"created_at"`
}

func toRefundResponse(r *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:             r.ID,
		OrderID:        r.OrderID,
		Reason:         r.Reason,
		RefundAmount:   r.Amount,
		RefundFee:      r.RefundFee,
		ShippingRefund: r.ShippingRefund,
		CreatedAt:      r.CreatedAt,
	}
}

type AdjustmentRequest struct {
	Amount      int64  `json:"amount" binding:"required,gte=-1000000000000000,lte=1000000000000000"`
	Description string `json:"description" binding:"required,max=512"`
}

type CashbookEntryResponse struct {
	ID          uuid.UUID         `json:"id"`
	Seq         int64             `json:"seq"`
	Type        domain.LedgerType `json:"type"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	ProductID   *uuid.UUID        `json:"product_id,omitempty"`
	OrderID     *uuid.UUID        `json:"order_id,omitempty"`
	Balance     int64             `json:"balance"`
	CreatedAt   time.Time         `json:"created_at"`
}

func toCashbookEntryResponse(e domain.CashbookTransaction) CashbookEntryResponse {
	return CashbookEntryResponse{
		ID:          e.ID,
		Seq:         e.Seq,
		Type:        e.Type,
		Amount:      e.Amount,
		Description: e.Description,
		ProductID:   e.ProductID,
		OrderID:     e.OrderID,
		Balance:     e.Balance,
		CreatedAt:   e.CreatedAt,
	}
}

type CashbookResponse struct {
	Balance      int64                   `json:"balance"`
	Transactions []CashbookEntryResponse `json:"transactions"`
}
