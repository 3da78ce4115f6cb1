package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuandi/fulfillment/internal/adapter/storage"
	"github.com/yuandi/fulfillment/internal/core/domain"
)

func TestRegisterProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.inventory.RegisterProduct(ctx, RegisterProductRequest{SKU: "  SWS-1 ", Name: "Essence", InitialStock: 4, LowStockThreshold: 5})
	require.NoError(t, err)
	assert.Equal(t, "SWS-1", p.SKU)
	assert.True(t, p.Active)
	assert.True(t, p.IsLowStock())

	_, err = f.inventory.RegisterProduct(ctx, RegisterProductRequest{SKU: "SWS-1", Name: "again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = f.inventory.RegisterProduct(ctx, RegisterProductRequest{SKU: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.inventory.RegisterProduct(ctx, RegisterProductRequest{SKU: "NEG", InitialStock: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	report, err := f.integrity.ValidateSystemIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Inventory, report.Issues)
}

func TestRegisterProduct_UsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewInventoryService(storage.NewMemoryStore(), nil, WithClock(func() time.Time { return at }))

	p, err := svc.RegisterProduct(context.Background(), RegisterProductRequest{SKU: "CLK"})
	require.NoError(t, err)
	assert.Equal(t, at, p.CreatedAt)
	assert.Equal(t, at, p.UpdatedAt)
}

func TestCreateInbound_ConvertsCost(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "CNY", 0)

	in, err := f.inventory.CreateInbound(context.Background(), InboundRequest{
		ProductID:     p.ID,
		Quantity:      10,
		CostCNY:       decimal.RequireFromString("12.50"),
		ExchangeRate:  decimal.RequireFromString("190.37"),
		Supplier:      "Yiwu",
		InvoiceNumber: "INV-7",
	})
	require.NoError(t, err)
	// 12.50 * 190.37 * 10 = 23796.25
	assert.Equal(t, int64(23796), in.TotalCostKRW)
	assert.Equal(t, 10, f.onHand(t, p.ID))
	assert.Equal(t, int64(-23796), f.balance(t))

	entries, err := f.cashbook.ListTransactions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LedgerInbound, entries[0].Type)
	require.NotNil(t, entries[0].ProductID)
	assert.Equal(t, p.ID, *entries[0].ProductID)
}

func TestCreateInbound_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "REJ", 1)

	_, err := f.inventory.CreateInbound(ctx, InboundRequest{ProductID: p.ID, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.inventory.CreateInbound(ctx, InboundRequest{ProductID: p.ID, Quantity: 1, TotalCostKRW: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.inventory.CreateInbound(ctx, InboundRequest{ProductID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.inventory.DeactivateProduct(ctx, p.ID))
	_, err = f.inventory.CreateInbound(ctx, InboundRequest{ProductID: p.ID, Quantity: 1, TotalCostKRW: 10})
	assert.ErrorIs(t, err, domain.ErrProductInactive)

	assert.Equal(t, 1, f.onHand(t, p.ID))
	assert.Zero(t, f.balance(t))
}

func TestCreateInbound_ZeroCostBooksNothing(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "GIFT", 0)

	in, err := f.inventory.CreateInbound(context.Background(), InboundRequest{
		ProductID: p.ID, Quantity: 4, CostCNY: decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	assert.Zero(t, in.TotalCostKRW)
	assert.Equal(t, 4, f.onHand(t, p.ID))

	entries, err := f.cashbook.ListTransactions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	report, err := f.integrity.ValidateSystemIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Overall, report.Issues)
}

func TestCreateInbound_RejectsOverflowingCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "HUGE", 0)

	_, err := f.inventory.CreateInbound(ctx, InboundRequest{ProductID: p.ID, Quantity: 1, TotalCostKRW: domain.MaxAmount + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.inventory.CreateInbound(ctx, InboundRequest{
		ProductID:    p.ID,
		Quantity:     1000,
		CostCNY:      decimal.RequireFromString("100000000000000"),
		ExchangeRate: decimal.RequireFromString("190.37"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Zero(t, f.onHand(t, p.ID))
	assert.Zero(t, f.balance(t))
}

func TestListProductsAndLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := f.product(t, "B-LOW", 1)
	f.product(t, "A-OK", 10)
	off := f.product(t, "C-OFF", 0)
	require.NoError(t, f.inventory.DeactivateProduct(ctx, off.ID))

	all, err := f.inventory.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := f.inventory.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "A-OK", active[0].SKU)

	lows, err := f.inventory.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, lows, 1)
	assert.Equal(t, low.ID, lows[0].ID)

	assert.ErrorIs(t, f.inventory.DeactivateProduct(ctx, uuid.New()), domain.ErrNotFound)
}
