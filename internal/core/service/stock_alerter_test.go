package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yuandi/fulfillment/internal/adapter/storage"
	"github.com/yuandi/fulfillment/internal/core/domain"
)

func TestStockAlerter_ReportsLowStockAfterOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	m := newRecordingMetrics()
	alerter := NewStockAlerter(store, nil, 16, WithMetrics(m))
	alerter.Start(2)

	inventory := NewInventoryService(store, nil)
	orders := NewOrderService(store, nil, nil, WithStockAlerts(alerter))

	p, err := inventory.RegisterProduct(context.Background(), RegisterProductRequest{SKU: "LOW", InitialStock: 5, LowStockThreshold: 3})
	require.NoError(t, err)
	plenty, err := inventory.RegisterProduct(context.Background(), RegisterProductRequest{SKU: "PLENTY", InitialStock: 50, LowStockThreshold: 3})
	require.NoError(t, err)

	_, err = orders.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerName: "Kim",
		Items: []domain.OrderItem{
			{ProductID: p.ID, Quantity: 3, Price: 100},
			{ProductID: plenty.ID, Quantity: 1, Price: 100},
		},
	})
	require.NoError(t, err)

	alerter.Close()
	assert.Equal(t, []string{"LOW"}, m.lowStockSKUs())
}

func TestStockAlerter_DropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	alerter := NewStockAlerter(storage.NewMemoryStore(), zap.New(core), 1)

	alerter.Publish(uuid.New())
	alerter.Publish(uuid.New())

	assert.Equal(t, 1, logs.FilterMessage("stock alert queue full, dropping").Len())
	alerter.Close()
}

func TestStockAlerter_UnknownProductIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	alerter := NewStockAlerter(storage.NewMemoryStore(), zap.New(core), 4)
	alerter.Start(1)

	alerter.Publish(uuid.New())
	alerter.Close()

	assert.Equal(t, 1, logs.FilterMessage("stock alert check failed").Len())
}

func TestStockAlerter_CloseIsIdempotent(t *testing.T) {
	alerter := NewStockAlerter(storage.NewMemoryStore(), nil, 4)
	alerter.Start(1)

	done := make(chan struct{})
	go func() {
		alerter.Close()
		alerter.Close()
		alerter.Publish(uuid.New())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close blocked")
	}
}
