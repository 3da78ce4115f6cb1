package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

// IntegrityValidator recomputes stock and cashbook balances from their
// history and compares them with the stored values. It never writes.
type IntegrityValidator struct {
	base
}

func NewIntegrityValidator(scope port.TransactionScope, logger *zap.Logger, opts ...Option) *IntegrityValidator {
	return &IntegrityValidator{base: newBase(scope, logger, "integrity", opts)}
}

type checkResult struct {
	ok     bool
	issues []string
}

func (v *IntegrityValidator) ValidateSystemIntegrity(ctx context.Context) (domain.IntegrityReport, error) {
	var inventory, cashbook, orders checkResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		inventory, err = v.checkInventory(gctx)
		return err
	})
	g.Go(func() (err error) {
		cashbook, err = v.checkCashbook(gctx)
		return err
	})
	g.Go(func() (err error) {
		orders, err = v.checkOrders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.IntegrityReport{}, fmt.Errorf("integrity check: %w", err)
	}

	report := domain.IntegrityReport{
		Inventory: inventory.ok,
		Cashbook:  cashbook.ok,
		Orders:    orders.ok,
		Overall:   inventory.ok && cashbook.ok && orders.ok,
		CheckedAt: v.now(),
	}
	report.Issues = append(report.Issues, inventory.issues...)
	report.Issues = append(report.Issues, cashbook.issues...)
	report.Issues = append(report.Issues, orders.issues...)

	v.metrics.SetIntegrity(report)
	return report, nil
}

func (v *IntegrityValidator) checkInventory(ctx context.Context) (checkResult, error) {
	res := checkResult{ok: true}
	err := v.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		products, err := repos.Products().List(ctx, false)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		sums, err := repos.Movements().SumByProduct(ctx)
		if err != nil {
			return fmt.Errorf("sum movements: %w", err)
		}
		sort.Slice(products, func(i, j int) bool { return products[i].SKU < products[j].SKU })
		for _, p := range products {
			expected := sums[p.ID]
			delete(sums, p.ID)
			if p.OnHand != expected {
				res.ok = false
				res.issues = append(res.issues,
					fmt.Sprintf("inventory: %s on_hand %d, movements sum to %d", p.SKU, p.OnHand, expected))
			}
			if p.OnHand < 0 {
				res.ok = false
				res.issues = append(res.issues, fmt.Sprintf("inventory: %s on_hand is negative", p.SKU))
			}
		}
		orphans := make([]string, 0, len(sums))
		for id := range sums {
			orphans = append(orphans, id.String())
		}
		sort.Strings(orphans)
		for _, id := range orphans {
			res.ok = false
			res.issues = append(res.issues, "inventory: movements reference unknown product "+id)
		}
		return nil
	})
	return res, err
}

func (v *IntegrityValidator) checkCashbook(ctx context.Context) (checkResult, error) {
	res := checkResult{ok: true}
	err := v.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		total, count, err := repos.Ledger().Sum(ctx)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}
		head, _, err := repos.Ledger().Head(ctx)
		if err != nil {
			return fmt.Errorf("ledger head: %w", err)
		}
		if head != total {
			res.ok = false
			res.issues = append(res.issues, fmt.Sprintf("cashbook: head balance %d, entries sum to %d", head, total))
		}
		if count == 0 {
			return nil
		}
		latest, err := repos.Ledger().Latest(ctx)
		if err != nil {
			return fmt.Errorf("latest ledger entry: %w", err)
		}
		if latest == nil || latest.Balance != total {
			res.ok = false
			var got int64
			if latest != nil {
				got = latest.Balance
			}
			res.issues = append(res.issues, fmt.Sprintf("cashbook: latest balance %d, entries sum to %d", got, total))
		}
		return nil
	})
	return res, err
}

func (v *IntegrityValidator) checkOrders(ctx context.Context) (checkResult, error) {
	res := checkResult{ok: true}
	err := v.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		orders, err := repos.Orders().List(ctx, port.OrderFilter{})
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		shipped, err := repos.Shipments().OrderIDs(ctx)
		if err != nil {
			return fmt.Errorf("shipment order ids: %w", err)
		}
		refunded, err := repos.Refunds().OrderIDs(ctx)
		if err != nil {
			return fmt.Errorf("refund order ids: %w", err)
		}
		sort.Slice(orders, func(i, j int) bool { return orders[i].OrderNumber < orders[j].OrderNumber })
		for _, o := range orders {
			switch o.Status {
			case domain.OrderStatusShipped, domain.OrderStatusDelivered:
				if !shipped[o.ID] {
					res.ok = false
					res.issues = append(res.issues, fmt.Sprintf("orders: %s is %s without a shipment", o.OrderNumber, o.Status))
				}
			case domain.OrderStatusRefunded:
				if !refunded[o.ID] {
					res.ok = false
					res.issues = append(res.issues, fmt.Sprintf("orders: %s is refunded without a refund record", o.OrderNumber))
				}
			}
		}
		return nil
	})
	return res, err
}

// Monitor runs the validator every interval until ctx is done, logging any
// violation it finds.
func (v *IntegrityValidator) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := v.ValidateSystemIntegrity(ctx)
			if err != nil {
				if ctx.Err() == nil {
					v.logger.Error("integrity check failed", zap.Error(err))
				}
				continue
			}
			if !report.Overall {
				v.logger.Warn("integrity violations found", zap.Strings("issues", report.Issues))
			} else {
				v.logger.Debug("integrity check passed")
			}
		}
	}
}
