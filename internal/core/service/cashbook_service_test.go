package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuandi/fulfillment/internal/core/domain"
)

func TestRecordAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.cashbook.RecordAdjustment(ctx, 5000, " petty cash ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Seq)
	assert.Equal(t, int64(5000), e.Balance)
	assert.Equal(t, "petty cash", e.Description)

	e, err = f.cashbook.RecordAdjustment(ctx, -7000, "bank fee")
	require.NoError(t, err)
	assert.Equal(t, int64(-7000), e.Amount)
	assert.Equal(t, int64(-2000), e.Balance)

	_, err = f.cashbook.RecordAdjustment(ctx, 0, "nothing")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.cashbook.RecordAdjustment(ctx, 10, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, int64(-2000), f.balance(t))
}

func TestEnsureOpeningBalance_OnlyOnEmptyLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.cashbook.EnsureOpeningBalance(ctx, 10_000_000)
	require.NoError(t, err)
	assert.True(t, booked)

	booked, err = f.cashbook.EnsureOpeningBalance(ctx, 10_000_000)
	require.NoError(t, err)
	assert.False(t, booked)

	booked, err = f.cashbook.EnsureOpeningBalance(ctx, 0)
	require.NoError(t, err)
	assert.False(t, booked)

	assert.Equal(t, int64(10_000_000), f.balance(t))
}

func TestListTransactions_NewestFirstWithRunningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, amt := range []int64{100, 200, -50, 25} {
		_, err := f.cashbook.RecordAdjustment(ctx, amt, "adj")
		require.NoError(t, err)
	}

	entries, err := f.cashbook.ListTransactions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{4, 3, 2}, []int64{entries[0].Seq, entries[1].Seq, entries[2].Seq})
	assert.Equal(t, []int64{275, 250, 300}, []int64{entries[0].Balance, entries[1].Balance, entries[2].Balance})

	all, err := f.cashbook.ListTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
