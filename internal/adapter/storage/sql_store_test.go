package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

func newMockStore(t *testing.T, dialect Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewSQLStore(db, dialect), mock
}

func TestRebind(t *testing.T) {
	q := `UPDATE products SET on_hand = on_hand - ? WHERE id = ? AND on_hand >= ?`
	assert.Equal(t, `UPDATE products SET on_hand = on_hand - $1 WHERE id = $2 AND on_hand >= $3`, rebind(DialectPostgres, q))
	assert.Equal(t, q, rebind(DialectMySQL, q))
	assert.Equal(t, `SELECT 1`, rebind(DialectPostgres, `SELECT 1`))
}

func TestDialect_DriverName(t *testing.T) {
	assert.Equal(t, "pgx", DialectPostgres.DriverName())
	assert.Equal(t, "mysql", DialectMySQL.DriverName())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505"}, domain.ErrAlreadyExists},
		{"pq unique", &pq.Error{Code: "23505"}, domain.ErrAlreadyExists},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, domain.ErrAlreadyExists},
		{"pgx other", &pgconn.PgError{Code: "40001"}, nil},
		{"mysql other", &mysql.MySQLError{Number: 1213}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				assert.Same(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
	assert.NoError(t, mapError(nil))
}

func TestSQLStore_DecrementStock(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	id := uuid.New()
	update := regexp.QuoteMeta(`UPDATE products SET on_hand = on_hand - $1, updated_at = $2 WHERE id = $3 AND active = TRUE AND on_hand >= $4`)

	mock.ExpectBegin()
	mock.ExpectExec(update).WithArgs(2, sqlmock.AnyArg(), id, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var ok bool
	err := store.Execute(context.Background(), func(repos port.Repositories) error {
		var err error
		ok, err = repos.Products().DecrementStock(context.Background(), id, 2)
		return err
	})
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectExec(update).WithArgs(5, sqlmock.AnyArg(), id, 5).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = store.Execute(context.Background(), func(repos port.Repositories) error {
		ok, err := repos.Products().DecrementStock(context.Background(), id, 5)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientStock
		}
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestSQLStore_ProductCreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	p := &domain.Product{ID: uuid.New(), SKU: "DUP", Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'DUP'"})
	mock.ExpectRollback()

	err := store.Execute(context.Background(), func(repos port.Repositories) error {
		return repos.Products().Create(context.Background(), p)
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSQLStore_FindProduct(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	id := uuid.New()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`SELECT ` + productColumns + ` FROM products WHERE id = $1`)

	mock.ExpectBegin()
	mock.ExpectQuery(query).WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "sku", "name", "on_hand", "low_stock_threshold", "active", "created_at", "updated_at"}).
			AddRow(id.String(), "SWS-1", "Essence", 7, 3, true, now, now),
	)
	mock.ExpectCommit()

	var p *domain.Product
	err := store.ExecuteReadOnly(context.Background(), func(repos port.Repositories) error {
		var err error
		p, err = repos.Products().FindByID(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, 7, p.OnHand)
	assert.True(t, p.Active)

	mock.ExpectBegin()
	mock.ExpectQuery(query).WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err = store.ExecuteReadOnly(context.Background(), func(repos port.Repositories) error {
		_, err := repos.Products().FindByID(context.Background(), id)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStore_LedgerAppend(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	orderID := uuid.New()
	entry := domain.NewLedgerEntry(domain.LedgerSales, 500, "sale").ForOrder(orderID)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ledger_head SET balance = balance + $1, seq = seq + 1 WHERE id = 1`)).
		WithArgs(int64(500)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance, seq FROM ledger_head WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "seq"}).AddRow(int64(1500), int64(3)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cashbook_transactions`)).
		WithArgs(entry.ID, int64(3), "sales", int64(500), "sale", nil, orderID, int64(1500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Execute(context.Background(), func(repos port.Repositories) error {
		return repos.Ledger().Append(context.Background(), &entry)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.Seq)
	assert.Equal(t, int64(1500), entry.Balance)
}

func TestSQLStore_LedgerAppendWithoutHead(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	entry := domain.NewLedgerEntry(domain.LedgerAdjustment, 10, "adj")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ledger_head SET balance = balance + ?, seq = seq + 1 WHERE id = 1`)).
		WithArgs(int64(10)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Execute(context.Background(), func(repos port.Repositories) error {
		return repos.Ledger().Append(context.Background(), &entry)
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStore_LedgerHeadAndSum(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance, seq FROM ledger_head WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "seq"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM cashbook_transactions`)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "count"}).AddRow(int64(-42), int64(2)))
	mock.ExpectCommit()

	err := store.ExecuteReadOnly(context.Background(), func(repos port.Repositories) error {
		balance, seq, err := repos.Ledger().Head(context.Background())
		require.NoError(t, err)
		assert.Zero(t, balance)
		assert.Zero(t, seq)

		total, count, err := repos.Ledger().Sum(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(-42), total)
		assert.Equal(t, int64(2), count)
		return nil
	})
	require.NoError(t, err)
}

func TestSQLStore_ListOrdersLoadsItems(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	orderID, productID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	cols := []string{"id", "order_number", "customer_name", "customer_phone", "pccc", "shipping_address", "status",
		"total_amount", "shipping_fee", "courier", "tracking_number", "refund_reason",
		"shipped_at", "delivered_at", "refunded_at", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE status = \$1 ORDER BY created_at DESC, order_number DESC LIMIT \$2`).
		WithArgs("shipped", 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			orderID.String(), "ORD-1", "Kim", "", "", "", "shipped",
			int64(1000), int64(0), "CJ", "T1", "",
			now, nil, nil, now, now,
		))
	mock.ExpectQuery(`FROM order_items WHERE order_id = \$1`).WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "price"}).AddRow(productID.String(), 2, int64(500)))
	mock.ExpectCommit()

	var orders []domain.Order
	err := store.ExecuteReadOnly(context.Background(), func(repos port.Repositories) error {
		var err error
		orders, err = repos.Orders().List(context.Background(), port.OrderFilter{Status: domain.OrderStatusShipped, Limit: 10})
		return err
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusShipped, orders[0].Status)
	require.NotNil(t, orders[0].ShippedAt)
	assert.Nil(t, orders[0].DeliveredAt)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, productID, orders[0].Items[0].ProductID)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)
}

func TestSQLStore_UpdateMissingOrder(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Execute(context.Background(), func(repos port.Repositories) error {
		return repos.Orders().UpdateStatus(context.Background(), &domain.Order{ID: uuid.New(), Status: domain.OrderStatusShipped})
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLStore_SumByProduct(t *testing.T) {
	store, mock := newMockStore(t, DialectMySQL)
	a, b := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT product_id, SUM(quantity) FROM stock_movements GROUP BY product_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "sum"}).AddRow(a.String(), int64(98)).AddRow(b.String(), int64(-1)))
	mock.ExpectCommit()

	var sums map[uuid.UUID]int
	err := store.ExecuteReadOnly(context.Background(), func(repos port.Repositories) error {
		var err error
		sums, err = repos.Movements().SumByProduct(context.Background())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{a: 98, b: -1}, sums)
}

func TestSQLStore_BeginFailure(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := store.Execute(context.Background(), func(port.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "too many connections")
	assert.False(t, called)
}

// txOptionsConnector is a database/sql connector whose connections only
// record the options transactions are opened with.
type txOptionsConnector struct{ opts []driver.TxOptions }

func (c *txOptionsConnector) Connect(context.Context) (driver.Conn, error) { return txOptionsConn{c}, nil }
func (c *txOptionsConnector) Driver() driver.Driver                        { return nil }

type txOptionsConn struct{ c *txOptionsConnector }

func (txOptionsConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (txOptionsConn) Close() error                        { return nil }
func (c txOptionsConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c txOptionsConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.c.opts = append(c.c.opts, opts)
	return txOptionsConn{c.c}, nil
}

func (txOptionsConn) Commit() error   { return nil }
func (txOptionsConn) Rollback() error { return nil }

func TestSQLStore_ReadOnlyUsesSnapshotIsolation(t *testing.T) {
	connector := &txOptionsConnector{}
	db := sql.OpenDB(connector)
	defer db.Close()
	store := NewSQLStore(db, DialectPostgres)

	require.NoError(t, store.ExecuteReadOnly(context.Background(), func(port.Repositories) error { return nil }))
	require.NoError(t, store.Execute(context.Background(), func(port.Repositories) error { return nil }))

	require.Len(t, connector.opts, 2)
	assert.Equal(t, driver.IsolationLevel(sql.LevelRepeatableRead), connector.opts[0].Isolation)
	assert.True(t, connector.opts[0].ReadOnly)
	assert.Equal(t, driver.IsolationLevel(sql.LevelDefault), connector.opts[1].Isolation)
	assert.False(t, connector.opts[1].ReadOnly)
}

func TestSQLLedger_AppendRejectsWrongSign(t *testing.T) {
	store, mock := newMockStore(t, DialectPostgres)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Execute(context.Background(), func(repos port.Repositories) error {
		e := domain.CashbookTransaction{ID: uuid.New(), Type: domain.LedgerSales, Amount: -1}
		return repos.Ledger().Append(context.Background(), &e)
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
