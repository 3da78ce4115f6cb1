package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

type ShipmentRequest struct {
	OrderID        uuid.UUID
	CourierCompany string
	TrackingNumber string
	ShippingFee    int64
	ShippingDate   time.Time // zero means now
}

// CreateShipment hands a paid order to a courier and books the shipping
// cost. A zero fee writes no ledger entry.
func (s *OrderService) CreateShipment(ctx context.Context, req ShipmentRequest) (_ *domain.Shipment, err error) {
	defer s.observe("create_shipment", s.now(), &err)

	if strings.TrimSpace(req.CourierCompany) == "" || strings.TrimSpace(req.TrackingNumber) == "" {
		return nil, domain.InvalidInput("courier and tracking number are required")
	}
	if err := domain.CheckAmount("shipping fee", req.ShippingFee); err != nil {
		return nil, err
	}
	shippedAt := req.ShippingDate
	if shippedAt.IsZero() {
		shippedAt = s.now()
	}

	shipment := &domain.Shipment{
		ID:             uuid.New(),
		OrderID:        req.OrderID,
		Courier:        strings.TrimSpace(req.CourierCompany),
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		ShippingFee:    req.ShippingFee,
		ShippedAt:      shippedAt,
	}

	var o *domain.Order
	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		var err error
		o, err = repos.Orders().FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := o.TransitionTo(domain.OrderStatusShipped, shippedAt); err != nil {
			return err
		}
		o.Courier = shipment.Courier
		o.TrackingNumber = shipment.TrackingNumber

		if err := repos.Shipments().Create(ctx, shipment); err != nil {
			return fmt.Errorf("create shipment: %w", err)
		}
		if err := repos.Orders().UpdateStatus(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if req.ShippingFee > 0 {
			entry := domain.NewLedgerEntry(domain.LedgerShipping, req.ShippingFee,
				fmt.Sprintf("shipping %s %s", o.OrderNumber, shipment.TrackingNumber)).ForOrder(o.ID)
			if err := repos.Ledger().Append(ctx, &entry); err != nil {
				return fmt.Errorf("append ledger: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order shipped",
		zap.String("order_number", o.OrderNumber),
		zap.String("courier", shipment.Courier),
		zap.String("tracking_number", shipment.TrackingNumber),
		zap.Int64("shipping_fee", shipment.ShippingFee),
	)
	return shipment, nil
}

// CompleteOrder marks a shipped order as delivered. No ledger effect.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID uuid.UUID) (_ *domain.Order, err error) {
	defer s.observe("complete_order", s.now(), &err)

	var o *domain.Order
	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		var err error
		o, err = repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.TransitionTo(domain.OrderStatusDelivered, s.now()); err != nil {
			return err
		}
		return repos.Orders().UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order delivered", zap.String("order_number", o.OrderNumber))
	return o, nil
}

type RefundRequest struct {
	OrderID        uuid.UUID
	Reason         string
	RefundAmount   int64
	RefundFee      int64
	ShippingRefund int64
}

// ProcessRefund refunds an order, returning every recorded line to stock.
// Restored quantities come from the stored order, never from the request.
func (s *OrderService) ProcessRefund(ctx context.Context, req RefundRequest) (_ *domain.Refund, err error) {
	defer s.observe("process_refund", s.now(), &err)

	if strings.TrimSpace(req.Reason) == "" {
		return nil, domain.InvalidInput("refund reason is required")
	}
	for field, amount := range map[string]int64{
		"refund amount":   req.RefundAmount,
		"refund fee":      req.RefundFee,
		"shipping refund": req.ShippingRefund,
	} {
		if err := domain.CheckAmount(field, amount); err != nil {
			return nil, err
		}
	}

	now := s.now()
	refund := &domain.Refund{
		ID:             uuid.New(),
		OrderID:        req.OrderID,
		Reason:         strings.TrimSpace(req.Reason),
		Amount:         req.RefundAmount,
		RefundFee:      req.RefundFee,
		ShippingRefund: req.ShippingRefund,
		CreatedAt:      now,
	}

	var o *domain.Order
	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		var err error
		o, err = repos.Orders().FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := o.TransitionTo(domain.OrderStatusRefunded, now); err != nil {
			return err
		}
		o.RefundReason = refund.Reason

		if err := repos.Refunds().Create(ctx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}
		if err := repos.Orders().UpdateStatus(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		for _, it := range o.Items {
			if err := repos.Products().IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("restore stock for %s: %w", it.ProductID, err)
			}
			m := domain.NewStockMovement(it.ProductID, domain.MovementRefund, it.Quantity, refund.ID)
			if err := repos.Movements().Create(ctx, &m); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}
		if req.RefundAmount > 0 {
			entry := domain.NewLedgerEntry(domain.LedgerRefund, req.RefundAmount,
				fmt.Sprintf("refund %s: %s", o.OrderNumber, refund.Reason)).ForOrder(o.ID)
			if err := repos.Ledger().Append(ctx, &entry); err != nil {
				return fmt.Errorf("append ledger: %w", err)
			}
		}
		if req.ShippingRefund > 0 {
			entry := domain.NewLedgerEntry(domain.LedgerShippingRefund, req.ShippingRefund,
				"shipping refund "+o.OrderNumber).ForOrder(o.ID)
			if err := repos.Ledger().Append(ctx, &entry); err != nil {
				return fmt.Errorf("append ledger: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order refunded",
		zap.String("order_number", o.OrderNumber),
		zap.Int64("refund_amount", refund.Amount),
		zap.Int64("shipping_refund", refund.ShippingRefund),
		zap.Int("lines_restored", len(o.Items)),
	)
	return refund, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o *domain.Order
	err := s.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		o, err = repos.Orders().FindByID(ctx, id)
		return err
	})
	return o, err
}

func (s *OrderService) ListOrders(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.InvalidInput("unknown order status " + string(filter.Status))
	}
	var orders []domain.Order
	err := s.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		orders, err = repos.Orders().List(ctx, filter)
		return err
	})
	return orders, err
}
