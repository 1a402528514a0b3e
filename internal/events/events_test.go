package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

func TestEncode(t *testing.T) {
	o := &domain.Order{
		ID:          "65a000000000000000000001",
		UserID:      "u1",
		OrderNumber: "ORD-20250115-0001",
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("150.97"),
		Items:       []domain.OrderItem{{Quantity: 2}, {Quantity: 1}},
	}
	ev := NewOrderEvent(OrderCreated, o, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	if ev.ID == "" || ev.TotalItems != 3 {
		t.Fatalf("event %+v", ev)
	}

	msg, err := Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != o.ID {
		t.Fatalf("key %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != OrderCreated {
		t.Fatalf("headers %+v", msg.Headers)
	}
	var back OrderEvent
	if err := json.Unmarshal(msg.Value, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.OrderNumber != o.OrderNumber || !back.TotalAmount.Equal(o.TotalAmount) {
		t.Fatalf("payload %+v", back)
	}
}
