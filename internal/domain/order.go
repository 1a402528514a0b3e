package domain

import (
	"crypto/subtle"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	// OrderStatusFailed заказ, для которого не удалось зарезервировать товар
	OrderStatusFailed OrderStatus = "failed"
)

// CancellableStatuses статусы, из которых разрешена отмена
var CancellableStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
}

func (s OrderStatus) Cancellable() bool {
	for _, c := range CancellableStatuses {
		if s == c {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusFailed
}

// OrderItem снимок позиции на момент покупки
type OrderItem struct {
	ProductID   string          `json:"productId" bson:"productId"`
	ProductName string          `json:"productName" bson:"productName"`
	Price       decimal.Decimal `json:"price" bson:"price"`
	Size        string          `json:"size" bson:"size"`
	Color       string          `json:"color" bson:"color"`
	Quantity    int64           `json:"quantity" bson:"quantity"`
	ItemTotal   decimal.Decimal `json:"itemTotal" bson:"itemTotal"`
}

// NewOrderItem фиксирует цену и название товара для строки корзины
func NewOrderItem(p *Product, line CartItem) OrderItem {
	return OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Size:        line.Size,
		Color:       line.Color,
		Quantity:    line.Quantity,
		ItemTotal:   p.Price.Mul(decimal.NewFromInt(line.Quantity)),
	}
}

func (i OrderItem) Key() VariantKey {
	return VariantKey{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}

// Order сущность заказа
type Order struct {
	ID                      string          `json:"orderId" bson:"_id"`
	UserID                  string          `json:"userId" bson:"userId"`
	OrderNumber             string          `json:"orderNumber" bson:"orderNumber"`
	Items                   []OrderItem     `json:"items" bson:"items"`
	TotalAmount             decimal.Decimal `json:"totalAmount" bson:"totalAmount"`
	Status                  OrderStatus     `json:"status" bson:"status"`
	StatusNote              string          `json:"statusNote,omitempty" bson:"statusNote,omitempty"`
	ConfirmationToken       string          `json:"-" bson:"confirmationToken,omitempty"`
	ConfirmationExpiresAt   *time.Time      `json:"-" bson:"confirmationExpiresAt,omitempty"`
	ConfirmationEmailSent   bool            `json:"confirmationEmailSent" bson:"confirmationEmailSent"`
	ConfirmationEmailSentAt *time.Time      `json:"confirmationEmailSentAt,omitempty" bson:"confirmationEmailSentAt,omitempty"`
	CreatedAt               time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// SumItems сумма line total по всем позициям
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.ItemTotal)
	}
	return total
}

// TotalItems суммарное количество единиц товара
func (o *Order) TotalItems() int64 {
	var n int64
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// CheckConfirm проверяет, можно ли подтвердить заказ данным токеном.
// Порядок проверок: статус, затем токен, затем срок действия.
func (o *Order) CheckConfirm(token string, now time.Time) error {
	if o.Status != OrderStatusPending {
		return &StatusError{Kind: ErrAlreadyProcessed, Status: o.Status}
	}
	if o.ConfirmationToken == "" || subtle.ConstantTimeCompare([]byte(o.ConfirmationToken), []byte(token)) != 1 {
		return ErrInvalidToken
	}
	if o.ConfirmationExpiresAt != nil && !now.Before(*o.ConfirmationExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// Confirm переводит pending -> confirmed и гасит токен
func (o *Order) Confirm(token string, now time.Time) error {
	if err := o.CheckConfirm(token, now); err != nil {
		return err
	}
	o.Status = OrderStatusConfirmed
	o.ConfirmationToken = ""
	o.ConfirmationExpiresAt = nil
	o.UpdatedAt = now
	return nil
}

// CheckCancel проверяет владельца и статус перед отменой
func (o *Order) CheckCancel(userID string) error {
	if o.UserID != userID {
		return ErrNotOwner
	}
	if !o.Status.Cancellable() {
		return &StatusError{Kind: ErrCannotCancel, Status: o.Status}
	}
	return nil
}

func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.ConfirmationExpiresAt != nil {
		t := *o.ConfirmationExpiresAt
		cp.ConfirmationExpiresAt = &t
	}
	if o.ConfirmationEmailSentAt != nil {
		t := *o.ConfirmationEmailSentAt
		cp.ConfirmationEmailSentAt = &t
	}
	return cp
}
