package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

const idempotencyKeyPrefix = "order:"

type OrderService struct {
	base
	idempotency port.IdempotencyStore
}

// NewOrderService wires the order workflow. idempotency may be nil, in which
// case idempotency keys are ignored.
func NewOrderService(scope port.TransactionScope, idempotency port.IdempotencyStore, logger *zap.Logger, opts ...Option) *OrderService {
	return &OrderService{
		base:        newBase(scope, logger, "orders", opts),
		idempotency: idempotency,
	}
}

type CreateOrderRequest struct {
	CustomerName    string
	CustomerPhone   string
	PCCC            string
	ShippingAddress string
	Items           []domain.OrderItem
	TotalAmount     int64 // zero means the sum of the line items
	ShippingFee     int64
	IdempotencyKey  string
}

func (r CreateOrderRequest) validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return domain.InvalidInput("customer name is required")
	}
	if len(r.Items) == 0 {
		return domain.InvalidInput("order has no items")
	}
	var subtotal int64
	prices := make(map[uuid.UUID]int64, len(r.Items))
	quantities := make(map[uuid.UUID]int64, len(r.Items))
	for _, it := range r.Items {
		if it.ProductID == uuid.Nil {
			return domain.InvalidInput("item product id is required")
		}
		if it.Quantity <= 0 {
			return domain.InvalidInput("item quantity must be positive")
		}
		if err := domain.CheckAmount("item price", it.Price); err != nil {
			return err
		}
		if price, seen := prices[it.ProductID]; seen && price != it.Price {
			return domain.InvalidInput(fmt.Sprintf("product %s is listed with different prices", it.ProductID))
		}
		prices[it.ProductID] = it.Price

		quantities[it.ProductID] += int64(it.Quantity)
		if quantities[it.ProductID] > domain.MaxQuantity {
			return domain.InvalidInput(fmt.Sprintf("quantity for product %s must not exceed %d", it.ProductID, domain.MaxQuantity))
		}
		line, ok := it.LineTotal()
		if !ok || subtotal+line > domain.MaxAmount {
			return domain.InvalidInput(fmt.Sprintf("order subtotal must not exceed %d", domain.MaxAmount))
		}
		subtotal += line
	}
	if err := domain.CheckAmount("total amount", r.TotalAmount); err != nil {
		return err
	}
	return domain.CheckAmount("shipping fee", r.ShippingFee)
}

// CreateOrder takes stock for every line, records the order as paid and books
// the sale. Each line is a conditional decrement, so a shortfall on any line
// rolls the whole order back with domain.ErrInsufficientStock and nothing is
// written.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (created *domain.Order, err error) {
	defer s.observe("create_order", s.now(), &err)

	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := idempotencyKeyPrefix + req.IdempotencyKey
		reserved, rerr := s.idempotency.Reserve(ctx, key)
		if rerr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", rerr)
		}
		if !reserved {
			return s.replay(ctx, key)
		}
		defer func() {
			if err != nil {
				s.releaseKey(key)
				return
			}
			s.completeKey(key, created.ID.String())
		}()
	}

	now := s.now()
	o := &domain.Order{
		ID:              uuid.New(),
		OrderNumber:     domain.GenerateOrderNumber(now),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   req.CustomerPhone,
		PCCC:            req.PCCC,
		ShippingAddress: req.ShippingAddress,
		Status:          domain.OrderStatusPaid,
		TotalAmount:     req.TotalAmount,
		ShippingFee:     req.ShippingFee,
		Items:           req.Items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if o.TotalAmount == 0 {
		o.TotalAmount = o.ItemsSubtotal()
	}
	o.Items = domain.MergeItems(req.Items)

	var entry domain.CashbookTransaction
	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		for _, it := range o.Items {
			ok, err := repos.Products().DecrementStock(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock for %s: %w", it.ProductID, err)
			}
			if !ok {
				return stockShortfall(ctx, repos, it.ProductID)
			}
		}
		if err := repos.Orders().Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, it := range o.Items {
			m := domain.NewStockMovement(it.ProductID, domain.MovementSale, it.Quantity, o.ID)
			if err := repos.Movements().Create(ctx, &m); err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}
		if o.TotalAmount == 0 {
			return nil
		}
		entry = domain.NewLedgerEntry(domain.LedgerSales, o.TotalAmount, "sale "+o.OrderNumber).ForOrder(o.ID)
		if err := repos.Ledger().Append(ctx, &entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("order rejected", zap.String("customer", o.CustomerName), zap.Error(err))
		return nil, err
	}

	s.publishStockChange(o.Items)
	s.logger.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.Int("lines", len(o.Items)),
		zap.Int64("total_amount", o.TotalAmount),
		zap.Int64("balance", entry.Balance),
	)
	return o, nil
}

// stockShortfall explains why a conditional decrement matched no row.
func stockShortfall(ctx context.Context, repos port.Repositories, productID uuid.UUID) error {
	p, err := repos.Products().FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound(fmt.Sprintf("product %s not found", productID))
		}
		return fmt.Errorf("load product %s: %w", productID, err)
	}
	if !p.Active {
		return domain.ErrProductInactive
	}
	return domain.ErrInsufficientStock
}

// replay answers a repeated idempotency key with the order it produced, or
// ErrDuplicateRequest while the first request is still in flight.
func (s *OrderService) replay(ctx context.Context, key string) (*domain.Order, error) {
	result, err := s.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	id, perr := uuid.Parse(result)
	if result == "" || perr != nil {
		return nil, domain.ErrDuplicateRequest
	}
	return s.GetOrder(ctx, id)
}

// releaseKey and completeKey run after the request context may be gone.
func (s *OrderService) releaseKey(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Error("idempotency release failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) completeKey(key, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.idempotency.Complete(ctx, key, orderID); err != nil {
		s.logger.Error("idempotency complete failed", zap.String("key", key), zap.Error(err))
	}
}
