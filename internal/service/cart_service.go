package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CartService операции над корзиной; итоги всегда считаются по живому каталогу
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// CartLine строка корзины с актуальной ценой и остатком
type CartLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Image       string          `json:"image"`
	Stock       int64           `json:"stock"`
	Quantity    int64           `json:"quantity"`
	ItemTotal   decimal.Decimal `json:"itemTotal"`
}

type CartView struct {
	Items      []CartLine      `json:"items"`
	TotalItems int64           `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type AddCartItem struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int64
}

func (s *CartService) Get(ctx context.Context, userID string) (*CartView, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// view строки удалённых товаров пропускаются, но в хранилище остаются
func (s *CartService) view(ctx context.Context, c *domain.Cart) (*CartView, error) {
	v := &CartView{Items: make([]CartLine, 0, len(c.Items)), TotalPrice: decimal.Zero}
	for _, it := range c.Items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		total := p.Price.Mul(decimal.NewFromInt(it.Quantity))
		v.Items = append(v.Items, CartLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Size:        it.Size,
			Color:       it.Color,
			Image:       p.FirstImage(),
			Stock:       p.StockOf(it.Size, it.Color),
			Quantity:    it.Quantity,
			ItemTotal:   total,
		})
		v.TotalItems += it.Quantity
		v.TotalPrice = v.TotalPrice.Add(total)
	}
	return v, nil
}

// loadVariant товар и вариант для строки корзины
func (s *CartService) loadVariant(ctx context.Context, key domain.VariantKey) (*domain.Product, *domain.Variant, error) {
	if !repository.ValidID(key.ProductID) {
		return nil, nil, domain.ErrInvalidID
	}
	p, err := s.products.GetByID(ctx, key.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !p.IsActive {
		return nil, nil, domain.ErrProductUnavailable
	}
	v, ok := p.Variant(key.Size, key.Color)
	if !ok {
		return nil, nil, domain.ErrVariantUnavailable
	}
	return p, v, nil
}

// Add суммирует количество с существующей строкой того же варианта
func (s *CartService) Add(ctx context.Context, userID string, in AddCartItem) (*CartView, error) {
	if in.Quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	key := domain.VariantKey{ProductID: in.ProductID, Size: in.Size, Color: in.Color}
	p, v, err := s.loadVariant(ctx, key)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	qty := in.Quantity
	idx := c.IndexOf(key)
	if idx >= 0 {
		qty += c.Items[idx].Quantity
	}
	if qty > v.Stock {
		return nil, &domain.InsufficientStockError{ProductName: p.Name, Size: v.Size, Color: v.Color, Available: v.Stock}
	}
	if idx >= 0 {
		c.Items[idx].Quantity = qty
	} else {
		c.Items = append(c.Items, domain.CartItem{ProductID: key.ProductID, Size: key.Size, Color: key.Color, Quantity: qty})
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

func (s *CartService) Update(ctx context.Context, userID string, key domain.VariantKey, qty int64) (*CartView, error) {
	if !repository.ValidID(key.ProductID) {
		return nil, domain.ErrInvalidID
	}
	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := c.IndexOf(key)
	if idx < 0 {
		return nil, domain.ErrItemNotInCart
	}
	p, v, err := s.loadVariant(ctx, key)
	if err != nil {
		return nil, err
	}
	if qty > v.Stock {
		return nil, &domain.InsufficientStockError{ProductName: p.Name, Size: v.Size, Color: v.Color, Available: v.Stock}
	}
	c.Items[idx].Quantity = qty
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

func (s *CartService) Remove(ctx context.Context, userID string, key domain.VariantKey) (*CartView, error) {
	if !repository.ValidID(key.ProductID) {
		return nil, domain.ErrInvalidID
	}
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := c.IndexOf(key)
	if idx < 0 {
		return nil, domain.ErrItemNotInCart
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

func (s *CartService) Clear(ctx context.Context, userID string) (*CartView, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Items = []domain.CartItem{}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}
