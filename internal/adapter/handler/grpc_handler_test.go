package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/yuandi/fulfillment/internal/adapter/storage"
	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/core/service"
)

type grpcEnv struct {
	client    *FulfillmentClient
	inventory *service.InventoryService
	cashbook  *service.CashbookService
}

func newGRPCEnv(t *testing.T) *grpcEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	inventory := service.NewInventoryService(store, nil)
	orders := service.NewOrderService(store, storage.NewMemoryIdempotencyStore(time.Hour), nil)
	integrity := service.NewIntegrityValidator(store, nil)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogging(zap.NewNop())))
	RegisterFulfillmentServer(srv, NewGRPCHandler(orders, integrity))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return &grpcEnv{
		client:    NewFulfillmentClient(conn),
		inventory: inventory,
		cashbook:  service.NewCashbookService(store, nil),
	}
}

func (e *grpcEnv) product(t *testing.T, sku string, stock int) *domain.Product {
	t.Helper()
	p, err := e.inventory.RegisterProduct(context.Background(), service.RegisterProductRequest{
		SKU: sku, Name: sku, InitialStock: stock,
	})
	require.NoError(t, err)
	return p
}

func TestGRPC_OrderLifecycle(t *testing.T) {
	env := newGRPCEnv(t)
	ctx := context.Background()
	p := env.product(t, "GRPC-1", 10)

	order, err := env.client.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Han",
		Items:        []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 2, Price: 30000}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(60000), order.TotalAmount)

	shipment, err := env.client.CreateShipment(ctx, &ShipmentRPCRequest{
		OrderID:          order.ID.String(),
		ShipOrderRequest: ShipOrderRequest{CourierCompany: "Hanjin", TrackingNumber: "HJ-9", ShippingFee: 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, shipment.OrderID)

	delivered, err := env.client.CompleteOrder(ctx, &OrderIDRequest{OrderID: order.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, delivered.Status)

	refund, err := env.client.ProcessRefund(ctx, &RefundRPCRequest{
		OrderID:            order.ID.String(),
		RefundOrderRequest: RefundOrderRequest{Reason: "changed mind", RefundAmount: 60000, ShippingRefund: 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), refund.RefundAmount)

	balance, err := env.cashbook.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60000-3000-60000+3000), balance)

	report, err := env.client.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Overall, report.Issues)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	env := newGRPCEnv(t)
	ctx := context.Background()
	p := env.product(t, "GRPC-2", 1)

	_, err := env.client.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Yoon",
		Items:        []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 5, Price: 100}},
	})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Equal(t, "재고 부족", status.Convert(err).Message())

	_, err = env.client.CreateOrder(ctx, &CreateOrderRequest{CustomerName: "Yoon"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.CompleteOrder(ctx, &OrderIDRequest{OrderID: "00000000-0000-0000-0000-000000000009"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	order, err := env.client.CreateOrder(ctx, &CreateOrderRequest{
		CustomerName: "Yoon",
		Items:        []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 1, Price: 100}},
	})
	require.NoError(t, err)
	_, err = env.client.CompleteOrder(ctx, &OrderIDRequest{OrderID: order.ID.String()})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_IdempotencyKeyFromMetadata(t *testing.T) {
	env := newGRPCEnv(t)
	p := env.product(t, "GRPC-3", 5)
	req := &CreateOrderRequest{
		CustomerName: "Seo",
		Items:        []OrderItemRequest{{ProductID: p.ID.String(), Quantity: 1, Price: 100}},
	}

	ctx := WithIdempotencyKey(context.Background(), "grpc-key-1")
	first, err := env.client.CreateOrder(ctx, req)
	require.NoError(t, err)
	second, err := env.client.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := env.inventory.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.OnHand)
}

func TestGRPCError_Mapping(t *testing.T) {
	assert.Equal(t, codes.AlreadyExists, status.Code(grpcError(domain.ErrAlreadyExists)))
	assert.Equal(t, codes.Aborted, status.Code(grpcError(domain.ErrDuplicateRequest)))
	assert.Equal(t, codes.Canceled, status.Code(grpcError(context.Canceled)))
	assert.Equal(t, codes.Internal, status.Code(grpcError(assert.AnError)))
}
