package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/repository"
)

// OrderNumberGenerator номера вида ORD-YYYYMMDD-NNNN; день по UTC, счётчик атомарный
type OrderNumberGenerator struct {
	seq repository.OrderSequence
	now func() time.Time
}

func NewOrderNumberGenerator(seq repository.OrderSequence) *OrderNumberGenerator {
	return &OrderNumberGenerator{seq: seq, now: time.Now}
}

func (g *OrderNumberGenerator) Next(ctx context.Context) (string, error) {
	day := g.now().UTC().Format("20060102")
	n, err := g.seq.Next(ctx, day)
	if err != nil {
		return "", fmt.Errorf("order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%04d", day, n), nil
}
