package notify

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRender_OrderConfirmation(t *testing.T) {
	subject, body, err := Render(TemplateOrderConfirmation, OrderConfirmationData{
		FirstName:   "Ann",
		OrderNumber: "ORD-20250115-0001",
		Items:       []OrderLine{{Name: "Classic Pullover Hoodie", Size: "M", Color: "Black", Quantity: 2, Total: "91.98"}},
		TotalAmount: "150.97",
		ConfirmURL:  "http://localhost:9091/api/v1/orders/confirm?orderNumber=ORD-20250115-0001&token=abc",
		ExpiresIn:   "24h0m0s",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(subject, "Confirm") {
		t.Fatalf("subject %q", subject)
	}
	for _, want := range []string{"ORD-20250115-0001", "150.97", "Classic Pullover Hoodie", "token=abc"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q", want)
		}
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, _, err := Render("password_reset", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	err := n.Send(context.Background(), "ann@example.com", TemplateEmailVerification, VerificationData{
		FirstName: "Ann", Code: "123456", ExpiresInMinutes: 10,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := logs.FilterMessage("email_logged").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["template"] != TemplateEmailVerification {
		t.Fatalf("template field %v", entries[0].ContextMap()["template"])
	}
}
