package domain

import (
	"errors"
	"fmt"
)

// Бизнес-ошибки. Проверяются через errors.Is / errors.As.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidID          = errors.New("invalid id format")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrItemNotInCart      = errors.New("item not found in cart")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is no longer available")
	ErrVariantUnavailable = errors.New("size/color combination not available")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrUserNotFound       = errors.New("user not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotOwner           = errors.New("unauthorized to access this order")
	ErrCannotCancel       = errors.New("cannot cancel order")
	ErrAlreadyProcessed   = errors.New("order is already processed")
	ErrInvalidToken       = errors.New("invalid confirmation token")
	ErrTokenExpired       = errors.New("confirmation token expired")
	ErrDuplicateNumber    = errors.New("duplicate order number")
	ErrAlreadyInWishlist  = errors.New("product already in wishlist")
	ErrNotInWishlist      = errors.New("product not in wishlist")
	ErrEmailTaken         = errors.New("email already registered")
	ErrBadCredentials     = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("please verify your email before logging in")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidCode        = errors.New("invalid or expired verification code")
)

// InsufficientStockError несёт доступный остаток варианта
type InsufficientStockError struct {
	ProductName string
	Size        string
	Color       string
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	if e.ProductName == "" {
		return fmt.Sprintf("insufficient stock (size: %s, color: %s): only %d available", e.Size, e.Color, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %q (size: %s, color: %s): only %d available",
		e.ProductName, e.Size, e.Color, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StatusError ошибка перехода для конкретного статуса заказа
type StatusError struct {
	Kind   error
	Status OrderStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %s", e.Kind, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Kind }
