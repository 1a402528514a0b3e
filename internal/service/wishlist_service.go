package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type WishlistService struct {
	wishlists repository.WishlistRepository
	products  repository.ProductRepository
	now       func() time.Time
}

func NewWishlistService(wishlists repository.WishlistRepository, products repository.ProductRepository) *WishlistService {
	return &WishlistService{wishlists: wishlists, products: products, now: func() time.Time { return time.Now().UTC() }}
}

type WishlistLine struct {
	ProductID      string           `json:"productId"`
	ProductName    string           `json:"productName"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice,omitempty"`
	Category       domain.Category  `json:"category"`
	Image          string           `json:"image"`
	InStock        bool             `json:"inStock"`
	AddedAt        time.Time        `json:"addedAt"`
}

type WishlistView struct {
	Items      []WishlistLine `json:"items"`
	TotalItems int            `json:"totalItems"`
}

func (s *WishlistService) Get(ctx context.Context, userID string) (*WishlistView, error) {
	w, err := s.wishlists.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, w)
}

// view только активные товары, недавно добавленные первыми
func (s *WishlistService) view(ctx context.Context, w *domain.Wishlist) (*WishlistView, error) {
	v := &WishlistView{Items: make([]WishlistLine, 0, len(w.Items))}
	for _, it := range w.Items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			continue
		}
		v.Items = append(v.Items, WishlistLine{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Price:          p.Price,
			CompareAtPrice: p.CompareAtPrice,
			Category:       p.Category,
			Image:          p.FirstImage(),
			InStock:        p.InStock,
			AddedAt:        it.AddedAt,
		})
	}
	sort.SliceStable(v.Items, func(i, j int) bool { return v.Items[i].AddedAt.After(v.Items[j].AddedAt) })
	v.TotalItems = len(v.Items)
	return v, nil
}

func (s *WishlistService) Add(ctx context.Context, userID, productID string) (*WishlistView, error) {
	if !repository.ValidID(productID) {
		return nil, domain.ErrInvalidID
	}
	p, err := s.products.GetByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.ErrProductUnavailable
	}
	w, err := s.wishlists.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Contains(productID) {
		return nil, domain.ErrAlreadyInWishlist
	}
	w.Items = append(w.Items, domain.WishlistItem{ProductID: productID, AddedAt: s.now()})
	if err := s.wishlists.Save(ctx, w); err != nil {
		return nil, err
	}
	return s.view(ctx, w)
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) (*WishlistView, error) {
	if !repository.ValidID(productID) {
		return nil, domain.ErrInvalidID
	}
	w, err := s.wishlists.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.Contains(productID) {
		return nil, domain.ErrNotInWishlist
	}
	items := w.Items[:0]
	for _, it := range w.Items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	w.Items = items
	if err := s.wishlists.Save(ctx, w); err != nil {
		return nil, err
	}
	return s.view(ctx, w)
}

func (s *WishlistService) Clear(ctx context.Context, userID string) (*WishlistView, error) {
	w, err := s.wishlists.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	w.Items = []domain.WishlistItem{}
	if err := s.wishlists.Save(ctx, w); err != nil {
		return nil, err
	}
	return s.view(ctx, w)
}
