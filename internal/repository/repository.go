package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrDuplicate нарушение уникального индекса
	ErrDuplicate = errors.New("duplicate key")
	// ErrStaleState условное обновление не нашло документ в ожидаемом состоянии
	ErrStaleState = errors.New("stale state")
)

// SortField поле сортировки каталога
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByPrice     SortField = "price"
	SortByName      SortField = "name"
	SortByRating    SortField = "rating"
)

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	Category      domain.Category
	MinPrice      *float64
	MaxPrice      *float64
	ActiveOnly    bool
	SortBy        SortField
	Ascending     bool
	Page          Page
}

// Page параметры постраничной выдачи (нумерация с 1)
type Page struct {
	Number int64
	Limit  int64
}

// Skip количество пропускаемых записей
func (p Page) Skip() int64 {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, int64, error)
}

// InventoryRepository атомарные операции над остатками вариантов.
// Reserve условное списание (check-and-decrement) на стороне хранилища,
// при нехватке возвращает *domain.InsufficientStockError с текущим остатком.
type InventoryRepository interface {
	Reserve(ctx context.Context, key domain.VariantKey, qty int64) error
	Release(ctx context.Context, key domain.VariantKey, qty int64) error
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	// Create возвращает ErrDuplicate при повторе orderNumber
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]domain.Order, int64, error)
	// TransitionStatus меняет статус только если текущий входит в from, иначе ErrStaleState
	TransitionStatus(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus, note string) (*domain.Order, error)
	// ConfirmPending compare-and-clear токена: pending + совпадение токена + срок не истёк
	ConfirmPending(ctx context.Context, number, token string, now time.Time) (*domain.Order, error)
	MarkConfirmationSent(ctx context.Context, id string, at time.Time) error
}

// CartRepository интерфейс репозитория корзин
type CartRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
}

// WishlistRepository интерфейс репозитория избранного
type WishlistRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Wishlist, error)
	Save(ctx context.Context, w *domain.Wishlist) error
}

// UserRepository интерфейс репозитория пользователей
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
}

// OrderSequence атомарный счётчик заказов в пределах дня (day = YYYYMMDD)
type OrderSequence interface {
	Next(ctx context.Context, day string) (int64, error)
}

// TxManager абстракция транзакции. Для in-memory это глобальная блокировка записи.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx выполняет fn без транзакции; согласованность обеспечивают компенсации
type NoTx struct{}

func (NoTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func statusIn(s domain.OrderStatus, set []domain.OrderStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}
