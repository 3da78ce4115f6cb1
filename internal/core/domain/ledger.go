package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxAmount caps every single KRW amount. With it, line totals, order sums
// and running balances cannot wrap an int64.
const MaxAmount int64 = 1_000_000_000_000_000

// MaxQuantity matches the INTEGER quantity columns.
const MaxQuantity = math.MaxInt32

// CheckAmount rejects negative amounts and amounts above MaxAmount.
func CheckAmount(field string, amount int64) error {
	if amount < 0 {
		return InvalidInput(field + " must not be negative")
	}
	if amount > MaxAmount {
		return InvalidInput(fmt.Sprintf("%s must not exceed %d", field, MaxAmount))
	}
	return nil
}

// AddBalance returns balance + amount, or an error where the sum would wrap.
func AddBalance(balance, amount int64) (int64, error) {
	sum := balance + amount
	if (amount > 0 && sum < balance) || (amount < 0 && sum > balance) {
		return 0, InvalidInput("ledger balance out of range")
	}
	return sum, nil
}

type LedgerType string

const (
	LedgerAdjustment     LedgerType = "adjustment"
	LedgerInbound        LedgerType = "inbound"
	LedgerSales          LedgerType = "sales"
	LedgerShipping       LedgerType = "shipping"
	LedgerRefund         LedgerType = "refund"
	LedgerShippingRefund LedgerType = "shipping_refund"
)

// Sign returns the expected sign of amounts of this type: -1 for outflows,
// +1 for inflows and 0 when either is allowed.
func (t LedgerType) Sign() int {
	switch t {
	case LedgerInbound, LedgerShipping, LedgerRefund:
		return -1
	case LedgerSales, LedgerShippingRefund:
		return 1
	}
	return 0
}

// CashbookTransaction is an append-only ledger entry. Seq and Balance are
// assigned by the ledger repository on append.
type CashbookTransaction struct {
	ID          uuid.UUID
	Seq         int64
	Type        LedgerType
	Amount      int64
	Description string
	ProductID   *uuid.UUID
	OrderID     *uuid.UUID
	Balance     int64
	CreatedAt   time.Time
}

// NewLedgerEntry builds an entry whose amount carries the sign of typ.
// For adjustments amount is used as given.
func NewLedgerEntry(typ LedgerType, amount int64, description string) CashbookTransaction {
	if sign := typ.Sign(); sign != 0 {
		if amount < 0 {
			amount = -amount
		}
		amount *= int64(sign)
	}
	return CashbookTransaction{
		ID:          uuid.New(),
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now(),
	}
}

// Validate checks the amount against MaxAmount and the sign of its type.
// Ledger repositories call it before appending.
func (e CashbookTransaction) Validate() error {
	if e.Amount > MaxAmount || e.Amount < -MaxAmount {
		return InvalidInput(fmt.Sprintf("%s amount %d out of range", e.Type, e.Amount))
	}
	switch sign := e.Type.Sign(); {
	case sign < 0 && e.Amount > 0, sign > 0 && e.Amount < 0:
		return InvalidInput(fmt.Sprintf("%s amount %d has the wrong sign", e.Type, e.Amount))
	}
	return nil
}

func (e CashbookTransaction) ForProduct(id uuid.UUID) CashbookTransaction {
	e.ProductID = &id
	return e
}

func (e CashbookTransaction) ForOrder(id uuid.UUID) CashbookTransaction {
	e.OrderID = &id
	return e
}
