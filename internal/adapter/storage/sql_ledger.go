package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

const ledgerColumns = `id, seq, type, amount, description, product_id, order_id, balance, created_at`

type sqlLedger struct{ c conn }

// Append bumps the single ledger_head row first. The row lock it takes is
// held until commit, so concurrent appends get consecutive sequence numbers
// and running balances.
func (r sqlLedger) Append(ctx context.Context, e *domain.CashbookTransaction) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.c.exec(ctx, `UPDATE ledger_head SET balance = balance + ?, seq = seq + 1 WHERE id = 1`, e.Amount)
	if err != nil {
		return fmt.Errorf("update ledger head: %w", err)
	}
	if err := requireRow(res, "ledger head"); err != nil {
		return err
	}

	if err := r.c.queryRow(ctx, `SELECT balance, seq FROM ledger_head WHERE id = 1`).Scan(&e.Balance, &e.Seq); err != nil {
		return fmt.Errorf("read ledger head: %w", err)
	}

	_, err = r.c.exec(ctx, `
		INSERT INTO cashbook_transactions (id, seq, type, amount, description, product_id, order_id, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Seq, string(e.Type), e.Amount, e.Description, nullUUID(e.ProductID), nullUUID(e.OrderID), e.Balance, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cashbook transaction: %w", mapError(err))
	}
	return nil
}

func (r sqlLedger) Head(ctx context.Context) (int64, int64, error) {
	var balance, seq int64
	err := r.c.queryRow(ctx, `SELECT balance, seq FROM ledger_head WHERE id = 1`).Scan(&balance, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read ledger head: %w", err)
	}
	return balance, seq, nil
}

func (r sqlLedger) Latest(ctx context.Context) (*domain.CashbookTransaction, error) {
	row := r.c.queryRow(ctx, `SELECT `+ledgerColumns+` FROM cashbook_transactions ORDER BY seq DESC LIMIT 1`)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest cashbook transaction: %w", err)
	}
	return e, nil
}

func (r sqlLedger) Sum(ctx context.Context) (int64, int64, error) {
	var total, count int64
	err := r.c.queryRow(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM cashbook_transactions`).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum cashbook transactions: %w", err)
	}
	return total, count, nil
}

func (r sqlLedger) List(ctx context.Context, limit int) ([]domain.CashbookTransaction, error) {
	rows, err := r.c.query(ctx, `SELECT `+ledgerColumns+` FROM cashbook_transactions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cashbook transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.CashbookTransaction
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cashbook transaction: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanLedgerEntry(s scanner) (*domain.CashbookTransaction, error) {
	var e domain.CashbookTransaction
	var typ string
	var productID, orderID uuid.NullUUID
	err := s.Scan(&e.ID, &e.Seq, &typ, &e.Amount, &e.Description, &productID, &orderID, &e.Balance, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Type = domain.LedgerType(typ)
	if productID.Valid {
		e.ProductID = &productID.UUID
	}
	if orderID.Valid {
		e.OrderID = &orderID.UUID
	}
	return &e, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
