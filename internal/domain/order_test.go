package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pendingOrder(now time.Time) *Order {
	exp := now.Add(24 * time.Hour)
	return &Order{
		ID:                    "o1",
		UserID:                "u1",
		Status:                OrderStatusPending,
		ConfirmationToken:     "secret",
		ConfirmationExpiresAt: &exp,
	}
}

func TestOrder_Confirm(t *testing.T) {
	now := time.Now().UTC()
	o := pendingOrder(now)

	if err := o.Confirm("wrong", now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if err := o.Confirm("secret", now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if o.Status != OrderStatusConfirmed || o.ConfirmationToken != "" {
		t.Fatalf("token not consumed: %+v", o)
	}
	// repeat call
	if err := o.Confirm("secret", now); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
}

func TestOrder_Confirm_Expired(t *testing.T) {
	now := time.Now().UTC()
	o := pendingOrder(now)
	if err := o.Confirm("secret", now.Add(25*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if o.Status != OrderStatusPending {
		t.Fatalf("status changed on failed confirm")
	}
}

func TestOrder_CheckCancel(t *testing.T) {
	o := pendingOrder(time.Now())
	if err := o.CheckCancel("other"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	for _, st := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing} {
		o.Status = st
		if err := o.CheckCancel("u1"); err != nil {
			t.Fatalf("%s should be cancellable: %v", st, err)
		}
	}
	for _, st := range []OrderStatus{OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed} {
		o.Status = st
		if err := o.CheckCancel("u1"); !errors.Is(err, ErrCannotCancel) {
			t.Fatalf("%s should not be cancellable, got %v", st, err)
		}
	}
}

func TestNewOrderItem_Totals(t *testing.T) {
	hoodie := &Product{ID: "p1", Name: "Classic Pullover Hoodie", Price: decimal.RequireFromString("45.99")}
	chinos := &Product{ID: "p2", Name: "Slim Fit Chinos", Price: decimal.RequireFromString("58.99")}
	items := []OrderItem{
		NewOrderItem(hoodie, CartItem{ProductID: "p1", Size: "M", Color: "Black", Quantity: 2}),
		NewOrderItem(chinos, CartItem{ProductID: "p2", Size: "32", Color: "Khaki", Quantity: 1}),
	}
	total := SumItems(items)
	if !total.Equal(decimal.RequireFromString("150.97")) {
		t.Fatalf("total expected 150.97, got %s", total)
	}
	o := Order{Items: items}
	if o.TotalItems() != 3 {
		t.Fatalf("total items expected 3, got %d", o.TotalItems())
	}
}

func TestProduct_RecomputeInStock(t *testing.T) {
	p := Product{Variants: []Variant{{Size: "M", Color: "White", Stock: 0}, {Size: "L", Color: "White", Stock: 0}}}
	p.RecomputeInStock()
	if p.InStock {
		t.Fatalf("expected out of stock")
	}
	p.Variants[1].Stock = 1
	p.RecomputeInStock()
	if !p.InStock || p.TotalStock() != 1 {
		t.Fatalf("expected in stock")
	}
}

func TestCart_RemoveOrdered(t *testing.T) {
	c := Cart{Items: []CartItem{
		{ProductID: "p1", Size: "M", Color: "Black", Quantity: 3},
		{ProductID: "p2", Size: "32", Color: "Khaki", Quantity: 1},
		{ProductID: "p3", Size: "L", Color: "Navy", Quantity: 1},
	}}
	// p1 got one more unit after the order snapshot, p3 was added afterwards
	c.RemoveOrdered([]OrderItem{
		{ProductID: "p1", Size: "M", Color: "Black", Quantity: 2},
		{ProductID: "p2", Size: "32", Color: "Khaki", Quantity: 1},
	})
	if len(c.Items) != 2 {
		t.Fatalf("expected 2 lines left, got %+v", c.Items)
	}
	if c.Items[0].ProductID != "p1" || c.Items[0].Quantity != 1 {
		t.Fatalf("expected p1 x1, got %+v", c.Items[0])
	}
	if c.Items[1].ProductID != "p3" || c.Items[1].Quantity != 1 {
		t.Fatalf("expected p3 x1, got %+v", c.Items[1])
	}
}
