package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

const productColumns = `id, sku, name, on_hand, low_stock_threshold, active, created_at, updated_at`

type sqlProducts struct{ c conn }

func (r sqlProducts) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO products (id, sku, name, on_hand, low_stock_threshold, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Name, p.OnHand, p.LowStockThreshold, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", mapError(err))
	}
	return nil
}

func (r sqlProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := r.c.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (r sqlProducts) List(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY sku`

	rows, err := r.c.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r sqlProducts) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	res, err := r.c.exec(ctx, `
		UPDATE products SET on_hand = on_hand + ?, updated_at = ?
		WHERE id = ?`,
		quantity, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return requireRow(res, "product")
}

func (r sqlProducts) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	res, err := r.c.exec(ctx, `
		UPDATE products SET on_hand = on_hand - ?, updated_at = ?
		WHERE id = ? AND active = TRUE AND on_hand >= ?`,
		quantity, time.Now(), id, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r sqlProducts) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.c.exec(ctx, `UPDATE products SET active = FALSE, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	return requireRow(res, "product")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*domain.Product, error) {
	var p domain.Product
	err := s.Scan(&p.ID, &p.SKU, &p.Name, &p.OnHand, &p.LowStockThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
