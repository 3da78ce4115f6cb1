package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

const orderColumns = `id, order_number, customer_name, customer_phone, pccc, shipping_address, status,
	total_amount, shipping_fee, courier, tracking_number, refund_reason,
	shipped_at, delivered_at, refunded_at, created_at, updated_at`

type sqlOrders struct{ c conn }

func (r sqlOrders) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO orders (id, order_number, customer_name, customer_phone, pccc, shipping_address, status,
			total_amount, shipping_fee, courier, tracking_number, refund_reason,
			shipped_at, delivered_at, refunded_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerPhone, o.PCCC, o.ShippingAddress, string(o.Status),
		o.TotalAmount, o.ShippingFee, o.Courier, o.TrackingNumber, o.RefundReason,
		nullTime(o.ShippedAt), nullTime(o.DeliveredAt), nullTime(o.RefundedAt), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapError(err))
	}

	for _, it := range o.Items {
		_, err := r.c.exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			o.ID, it.ProductID, it.Quantity, it.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", mapError(err))
		}
	}
	return nil
}

func (r sqlOrders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.c.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(fmt.Sprintf("order %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r sqlOrders) List(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, order_number DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	// A transaction holds a single connection, so items are loaded only
	// after the order cursor is closed.
	for i := range out {
		if out[i].Items, err = r.items(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r sqlOrders) UpdateStatus(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now()
	res, err := r.c.exec(ctx, `
		UPDATE orders SET status = ?, courier = ?, tracking_number = ?, refund_reason = ?,
			shipped_at = ?, delivered_at = ?, refunded_at = ?, updated_at = ?
		WHERE id = ?`,
		string(o.Status), o.Courier, o.TrackingNumber, o.RefundReason,
		nullTime(o.ShippedAt), nullTime(o.DeliveredAt), nullTime(o.RefundedAt), o.UpdatedAt,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return requireRow(res, "order")
}

func (r sqlOrders) items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.c.query(ctx, `
		SELECT product_id, quantity, price FROM order_items
		WHERE order_id = ? ORDER BY product_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	var status string
	var shippedAt, deliveredAt, refunded sql.NullTime
	err := s.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.PCCC, &o.ShippingAddress, &status,
		&o.TotalAmount, &o.ShippingFee, &o.Courier, &o.TrackingNumber, &o.RefundReason,
		&shippedAt, &deliveredAt, &refunded, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.ShippedAt = timePtr(shippedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	o.RefundedAt = timePtr(refunded)
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
