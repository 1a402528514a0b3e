package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func TestLedger_ReserveAllRollsBack(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	ps := NewProductService(store)
	a, _ := ps.Create(ctx, sampleProduct("Hoodie", "H1", "45.99", domain.CategoryHoodies))
	b, _ := ps.Create(ctx, sampleProduct("Chinos", "P1", "58.99", domain.CategoryPants))
	l := NewLedger(store)

	items := []domain.OrderItem{
		{ProductID: a.ID, ProductName: a.Name, Size: "M", Color: "Black", Quantity: 3},
		{ProductID: b.ID, ProductName: b.Name, Size: "M", Color: "Black", Quantity: 9},
	}
	err := l.ReserveAll(ctx, items)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 5 {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	got, _ := store.GetByID(ctx, a.ID)
	if got.StockOf("M", "Black") != 5 {
		t.Fatalf("first line not released, stock %d", got.StockOf("M", "Black"))
	}

	items[1].Quantity = 5
	if err := l.ReserveAll(ctx, items); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got, _ = store.GetByID(ctx, b.ID)
	if got.StockOf("M", "Black") != 0 || got.InStock {
		t.Fatalf("expected chinos sold out")
	}
	if err := l.ReleaseAll(ctx, items); err != nil {
		t.Fatalf("release: %v", err)
	}

	missing := []domain.OrderItem{{ProductID: repository.NewID(), ProductName: "Ghost", Size: "M", Color: "Black", Quantity: 1}}
	if err := l.ReserveAll(ctx, missing); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
	// vanished product or variant has nowhere to return stock to
	gone := append(missing, domain.OrderItem{ProductID: a.ID, ProductName: a.Name, Size: "XXL", Color: "Pink", Quantity: 1}, items[0])
	if err := l.ReleaseAll(ctx, gone); err != nil {
		t.Fatalf("release with missing lines: %v", err)
	}
	got, _ = store.GetByID(ctx, a.ID)
	if got.StockOf("M", "Black") != 8 {
		t.Fatalf("existing line must still be released, stock %d", got.StockOf("M", "Black"))
	}
}

func TestOrderNumberGenerator(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	g := NewOrderNumberGenerator(repository.NewMemorySequence(store))
	// 23:30 in UTC-5 is already the next day in UTC
	g.now = func() time.Time { return time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)) }

	first, err := g.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != "ORD-20250310-0001" {
		t.Fatalf("unexpected number %s", first)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[string]bool{first: true}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := g.Next(ctx)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[n] {
				t.Errorf("duplicate %s", n)
			}
			seen[n] = true
		}()
	}
	wg.Wait()
	if !seen["ORD-20250310-0051"] {
		t.Fatalf("expected sequence to reach 51")
	}
}
