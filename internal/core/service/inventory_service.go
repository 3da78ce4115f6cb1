package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

type InventoryService struct {
	base
}

func NewInventoryService(scope port.TransactionScope, logger *zap.Logger, opts ...Option) *InventoryService {
	return &InventoryService{base: newBase(scope, logger, "inventory", opts)}
}

type RegisterProductRequest struct {
	SKU               string
	Name              string
	InitialStock      int
	LowStockThreshold int
}

func (s *InventoryService) RegisterProduct(ctx context.Context, req RegisterProductRequest) (_ *domain.Product, err error) {
	defer s.observe("register_product", s.now(), &err)

	req.SKU = strings.TrimSpace(req.SKU)
	if req.SKU == "" {
		return nil, domain.InvalidInput("sku is required")
	}
	if req.InitialStock < 0 || req.InitialStock > domain.MaxQuantity || req.LowStockThreshold < 0 {
		return nil, domain.InvalidInput(fmt.Sprintf("stock values must be between 0 and %d", domain.MaxQuantity))
	}

	now := s.now()
	product := &domain.Product{
		ID:                uuid.New(),
		SKU:               req.SKU,
		Name:              strings.TrimSpace(req.Name),
		OnHand:            req.InitialStock,
		LowStockThreshold: req.LowStockThreshold,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		if err := repos.Products().Create(ctx, product); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if product.OnHand > 0 {
			m := domain.NewStockMovement(product.ID, domain.MovementInitial, product.OnHand, product.ID)
			if err := repos.Movements().Create(ctx, &m); err != nil {
				return fmt.Errorf("record initial stock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product registered",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.Int("on_hand", product.OnHand),
	)
	return product, nil
}

func (s *InventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var product *domain.Product
	err := s.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		product, err = repos.Products().FindByID(ctx, id)
		return err
	})
	return product, err
}

func (s *InventoryService) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	var products []domain.Product
	err := s.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		products, err = repos.Products().List(ctx, activeOnly)
		return err
	})
	return products, err
}

// ListLowStock returns active products at or below their threshold.
func (s *InventoryService) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *InventoryService) DeactivateProduct(ctx context.Context, id uuid.UUID) (err error) {
	defer s.observe("deactivate_product", s.now(), &err)

	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		return repos.Products().Deactivate(ctx, id)
	})
	if err == nil {
		s.logger.Info("product deactivated", zap.String("product_id", id.String()))
	}
	return err
}

type InboundRequest struct {
	ProductID     uuid.UUID
	Quantity      int
	CostCNY       decimal.Decimal
	ExchangeRate  decimal.Decimal
	TotalCostKRW  int64
	Supplier      string
	InvoiceNumber string
}

func (r InboundRequest) validate() error {
	if r.ProductID == uuid.Nil {
		return domain.InvalidInput("product id is required")
	}
	if r.Quantity <= 0 || r.Quantity > domain.MaxQuantity {
		return domain.InvalidInput(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxQuantity))
	}
	if r.CostCNY.IsNegative() || r.ExchangeRate.IsNegative() {
		return domain.InvalidInput("costs must not be negative")
	}
	return domain.CheckAmount("total cost", r.TotalCostKRW)
}

// CreateInbound receives stock and books its cost as a cashbook outflow.
// The stock increment, inbound record and ledger entry commit together.
func (s *InventoryService) CreateInbound(ctx context.Context, req InboundRequest) (_ *domain.Inbound, err error) {
	defer s.observe("create_inbound", s.now(), &err)

	if err := req.validate(); err != nil {
		return nil, err
	}
	total := req.TotalCostKRW
	if total == 0 {
		var ok bool
		if total, ok = domain.ConvertCostKRW(req.CostCNY, req.ExchangeRate, req.Quantity); !ok {
			return nil, domain.InvalidInput(fmt.Sprintf("total cost must not exceed %d", domain.MaxAmount))
		}
	}

	inbound := &domain.Inbound{
		ID:            uuid.New(),
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		CostCNY:       req.CostCNY,
		ExchangeRate:  req.ExchangeRate,
		TotalCostKRW:  total,
		Supplier:      req.Supplier,
		InvoiceNumber: req.InvoiceNumber,
		CreatedAt:     s.now(),
	}

	var entry domain.CashbookTransaction
	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		product, err := repos.Products().FindByID(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if !product.Active {
			return domain.ErrProductInactive
		}
		if err := repos.Products().IncrementStock(ctx, req.ProductID, req.Quantity); err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		if err := repos.Inbounds().Create(ctx, inbound); err != nil {
			return fmt.Errorf("create inbound: %w", err)
		}
		m := domain.NewStockMovement(req.ProductID, domain.MovementInbound, req.Quantity, inbound.ID)
		if err := repos.Movements().Create(ctx, &m); err != nil {
			return fmt.Errorf("record stock movement: %w", err)
		}
		if total == 0 {
			return nil
		}
		entry = domain.NewLedgerEntry(domain.LedgerInbound, total,
			fmt.Sprintf("inbound %s x%d %s", product.SKU, req.Quantity, req.InvoiceNumber)).ForProduct(req.ProductID)
		if err := repos.Ledger().Append(ctx, &entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("inbound failed", zap.String("product_id", req.ProductID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("inbound recorded",
		zap.String("inbound_id", inbound.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.Int("quantity", req.Quantity),
		zap.Int64("total_cost_krw", total),
		zap.Int64("balance", entry.Balance),
	)
	return inbound, nil
}
