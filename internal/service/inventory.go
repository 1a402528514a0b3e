package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

// Ledger резервирование остатков по строкам заказа.
// Каждая строка списывается атомарно в хранилище; ReserveAll всё-или-ничего в пределах одного заказа.
type Ledger struct {
	inv repository.InventoryRepository
}

func NewLedger(inv repository.InventoryRepository) *Ledger {
	return &Ledger{inv: inv}
}

// ReserveAll резервирует строки по порядку; при ошибке возвращает уже списанное
func (l *Ledger) ReserveAll(ctx context.Context, items []domain.OrderItem) error {
	for i, it := range items {
		err := l.inv.Reserve(ctx, it.Key(), it.Quantity)
		if err == nil {
			continue
		}
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) && stockErr.ProductName == "" {
			stockErr.ProductName = it.ProductName
		}
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: %s", domain.ErrProductNotFound, it.ProductName)
		}
		if rerr := l.ReleaseAll(ctx, items[:i]); rerr != nil {
			logging.FromContext(ctx).Error("reservation_rollback_failed", zap.Error(rerr))
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// ReleaseAll возвращает остатки всех строк; ошибки собираются, обход не прерывается.
// Удалённый с момента заказа товар или вариант пропускается: возвращать остаток некуда.
func (l *Ledger) ReleaseAll(ctx context.Context, items []domain.OrderItem) error {
	var errs []error
	for _, it := range items {
		err := l.inv.Release(ctx, it.Key(), it.Quantity)
		if errors.Is(err, repository.ErrNotFound) {
			logging.FromContext(ctx).Warn("stock_release_skipped",
				zap.String("product_id", it.ProductID),
				zap.String("size", it.Size),
				zap.String("color", it.Color),
				zap.Int64("quantity", it.Quantity),
			)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s %s/%s: %w", it.ProductID, it.Size, it.Color, err))
		}
	}
	return errors.Join(errs...)
}
