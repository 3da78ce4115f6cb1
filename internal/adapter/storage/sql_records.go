package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

type sqlShipments struct{ c conn }

func (r sqlShipments) Create(ctx context.Context, s *domain.Shipment) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO shipments (id, order_id, courier, tracking_number, shipping_fee, shipped_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.OrderID, s.Courier, s.TrackingNumber, s.ShippingFee, s.ShippedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", mapError(err))
	}
	return nil
}

func (r sqlShipments) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Shipment, error) {
	rows, err := r.c.query(ctx, `
		SELECT id, order_id, courier, tracking_number, shipping_fee, shipped_at
		FROM shipments WHERE order_id = ? ORDER BY shipped_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var out []domain.Shipment
	for rows.Next() {
		var s domain.Shipment
		if err := rows.Scan(&s.ID, &s.OrderID, &s.Courier, &s.TrackingNumber, &s.ShippingFee, &s.ShippedAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r sqlShipments) OrderIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	return distinctOrderIDs(ctx, r.c, "shipments")
}

type sqlRefunds struct{ c conn }

func (r sqlRefunds) Create(ctx context.Context, rf *domain.Refund) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO refunds (id, order_id, reason, amount, refund_fee, shipping_refund, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rf.ID, rf.OrderID, rf.Reason, rf.Amount, rf.RefundFee, rf.ShippingRefund, rf.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", mapError(err))
	}
	return nil
}

func (r sqlRefunds) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Refund, error) {
	rows, err := r.c.query(ctx, `
		SELECT id, order_id, reason, amount, refund_fee, shipping_refund, created_at
		FROM refunds WHERE order_id = ? ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query refunds: %w", err)
	}
	defer rows.Close()

	var out []domain.Refund
	for rows.Next() {
		var rf domain.Refund
		if err := rows.Scan(&rf.ID, &rf.OrderID, &rf.Reason, &rf.Amount, &rf.RefundFee, &rf.ShippingRefund, &rf.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

func (r sqlRefunds) OrderIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	return distinctOrderIDs(ctx, r.c, "refunds")
}

// distinctOrderIDs is only called with fixed table names.
func distinctOrderIDs(ctx context.Context, c conn, table string) (map[uuid.UUID]bool, error) {
	rows, err := c.query(ctx, `SELECT DISTINCT order_id FROM `+table)
	if err != nil {
		return nil, fmt.Errorf("query %s order ids: %w", table, err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s order id: %w", table, err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

type sqlInbounds struct{ c conn }

func (r sqlInbounds) Create(ctx context.Context, in *domain.Inbound) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO inbounds (id, product_id, quantity, cost_cny, exchange_rate, total_cost_krw,
			supplier, invoice_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.ProductID, in.Quantity, in.CostCNY, in.ExchangeRate, in.TotalCostKRW,
		in.Supplier, in.InvoiceNumber, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inbound: %w", mapError(err))
	}
	return nil
}

type sqlMovements struct{ c conn }

func (r sqlMovements) Create(ctx context.Context, m *domain.StockMovement) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO stock_movements (id, product_id, type, quantity, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProductID, string(m.Type), m.Quantity, m.ReferenceID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", mapError(err))
	}
	return nil
}

func (r sqlMovements) SumByProduct(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := r.c.query(ctx, `SELECT product_id, SUM(quantity) FROM stock_movements GROUP BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("sum stock movements: %w", err)
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scan stock movement sum: %w", err)
		}
		sums[id] = int(sum)
	}
	return sums, rows.Err()
}
