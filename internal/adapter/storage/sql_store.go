package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "mysql"
}

// queryer is satisfied by *sql.Tx and *sql.DB.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements port.TransactionScope over Postgres or MySQL. Queries
// are written with '?' placeholders and rebound for Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Execute(ctx context.Context, fn func(repos port.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.repos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// readOnlyTx reads every statement from one snapshot. Postgres defaults to
// READ COMMITTED, where each statement sees its own.
var readOnlyTx = sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func (s *SQLStore) ExecuteReadOnly(ctx context.Context, fn func(repos port.Repositories) error) error {
	opts := readOnlyTx
	tx, err := s.db.BeginTx(ctx, &opts)
	if err != nil {
		return fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.repos(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) repos(q queryer) *sqlRepos {
	return &sqlRepos{conn: conn{q: q, dialect: s.dialect}}
}

type sqlRepos struct {
	conn conn
}

func (r *sqlRepos) Products() port.ProductRepository   { return sqlProducts{r.conn} }
func (r *sqlRepos) Orders() port.OrderRepository       { return sqlOrders{r.conn} }
func (r *sqlRepos) Shipments() port.ShipmentRepository { return sqlShipments{r.conn} }
func (r *sqlRepos) Refunds() port.RefundRepository     { return sqlRefunds{r.conn} }
func (r *sqlRepos) Inbounds() port.InboundRepository   { return sqlInbounds{r.conn} }
func (r *sqlRepos) Movements() port.MovementRepository { return sqlMovements{r.conn} }
func (r *sqlRepos) Ledger() port.LedgerRepository      { return sqlLedger{r.conn} }

// conn rebinds placeholders before handing queries to the transaction.
type conn struct {
	q       queryer
	dialect Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, rebind(c.dialect, query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, rebind(c.dialect, query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, rebind(c.dialect, query), args...)
}

// rebind turns '?' placeholders into $1, $2, ... for Postgres.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// mapError converts driver unique violations into domain.ErrAlreadyExists.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return domain.ErrAlreadyExists
	}
	return err
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return domain.NotFound(what + " not found")
	}
	return nil
}

var _ port.TransactionScope = (*SQLStore)(nil)
