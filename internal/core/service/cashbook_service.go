package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

type CashbookService struct {
	base
}

func NewCashbookService(scope port.TransactionScope, logger *zap.Logger, opts ...Option) *CashbookService {
	return &CashbookService{base: newBase(scope, logger, "cashbook", opts)}
}

// RecordAdjustment appends a manual entry with a signed amount.
func (s *CashbookService) RecordAdjustment(ctx context.Context, amount int64, description string) (_ *domain.CashbookTransaction, err error) {
	defer s.observe("record_adjustment", s.now(), &err)

	if amount == 0 {
		return nil, domain.InvalidInput("adjustment amount must not be zero")
	}
	if amount > domain.MaxAmount || amount < -domain.MaxAmount {
		return nil, domain.InvalidInput(fmt.Sprintf("adjustment amount must be within ±%d", domain.MaxAmount))
	}
	if strings.TrimSpace(description) == "" {
		return nil, domain.InvalidInput("adjustment description is required")
	}

	entry := domain.NewLedgerEntry(domain.LedgerAdjustment, amount, strings.TrimSpace(description))
	err = s.scope.Execute(ctx, func(repos port.Repositories) error {
		if err := repos.Ledger().Append(ctx, &entry); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cashbook adjusted", zap.Int64("amount", amount), zap.Int64("balance", entry.Balance))
	return &entry, nil
}

// EnsureOpeningBalance books amount as the first entry of an empty ledger.
// It does nothing once the ledger has entries.
func (s *CashbookService) EnsureOpeningBalance(ctx context.Context, amount int64) (bool, error) {
	if amount == 0 {
		return false, nil
	}
	var booked bool
	err := s.scope.Execute(ctx, func(repos port.Repositories) error {
		_, count, err := repos.Ledger().Sum(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		entry := domain.NewLedgerEntry(domain.LedgerAdjustment, amount, "opening balance")
		if err := repos.Ledger().Append(ctx, &entry); err != nil {
			return fmt.Errorf("append opening balance: %w", err)
		}
		booked = true
		return nil
	})
	if booked {
		s.logger.Info("opening balance booked", zap.Int64("amount", amount))
	}
	return booked, err
}

func (s *CashbookService) Balance(ctx context.Context) (int64, error) {
	var balance int64
	err := s.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		balance, _, err = repos.Ledger().Head(ctx)
		return err
	})
	return balance, err
}

func (s *CashbookService) ListTransactions(ctx context.Context, limit int) ([]domain.CashbookTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []domain.CashbookTransaction
	err := s.scope.ExecuteReadOnly(ctx, func(repos port.Repositories) error {
		var err error
		entries, err = repos.Ledger().List(ctx, limit)
		return err
	})
	return entries, err
}
