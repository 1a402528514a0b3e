package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const (
	defaultCatalogLimit = 9
	maxCatalogLimit     = 100
)

// ProductService инкапсулирует бизнес-логику вокруг товаров
type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

func validateProduct(p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	case p.CompareAtPrice != nil && p.CompareAtPrice.IsNegative():
		return fmt.Errorf("%w: compareAtPrice must not be negative", domain.ErrInvalidInput)
	case !p.Category.Valid():
		return fmt.Errorf("%w: category must be one of sweaters, jackets, pants, hoodies", domain.ErrInvalidInput)
	case len(p.Variants) == 0:
		return fmt.Errorf("%w: at least one variant is required", domain.ErrInvalidInput)
	}
	seen := make(map[[2]string]bool, len(p.Variants))
	for _, v := range p.Variants {
		if v.Size == "" || v.Color == "" || v.SKU == "" {
			return fmt.Errorf("%w: variant size, color and sku are required", domain.ErrInvalidInput)
		}
		if v.Stock < 0 {
			return fmt.Errorf("%w: variant %s stock must not be negative", domain.ErrInvalidInput, v.SKU)
		}
		k := [2]string{v.Size, v.Color}
		if seen[k] {
			return fmt.Errorf("%w: duplicate variant %s/%s", domain.ErrInvalidInput, v.Size, v.Color)
		}
		seen[k] = true
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	cp := p
	cp.ID = ""
	if err := s.repo.Create(ctx, &cp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: sku already exists", domain.ErrInvalidInput)
		}
		return nil, err
	}
	return &cp, nil
}

// GetByID возвращает товар независимо от isActive
func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if !repository.ValidID(id) {
		return nil, domain.ErrInvalidID
	}
	return s.repo.GetByID(ctx, id)
}

// GetActive карточка товара для витрины: неактивные товары не видны
func (s *ProductService) GetActive(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if !repository.ValidID(p.ID) {
		return nil, domain.ErrInvalidID
	}
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	cp := p
	if err := s.repo.Update(ctx, &cp); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: sku already exists", domain.ErrInvalidInput)
		}
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if !repository.ValidID(id) {
		return domain.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

// CatalogQuery параметры витрины
type CatalogQuery struct {
	Page      int64
	Limit     int64
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	Search    string
	SortBy    string
	SortOrder string
}

type CatalogPagination struct {
	Page          int64 `json:"page"`
	Limit         int64 `json:"limit"`
	TotalProducts int64 `json:"totalProducts"`
	TotalPages    int64 `json:"totalPages"`
	HasNextPage   bool  `json:"hasNextPage"`
	HasPrevPage   bool  `json:"hasPrevPage"`
}

type CatalogPage struct {
	Products   []domain.Product  `json:"products"`
	Pagination CatalogPagination `json:"pagination"`
}

// List только активные товары, по умолчанию новые первыми
func (s *ProductService) List(ctx context.Context, q CatalogQuery) (*CatalogPage, error) {
	f := repository.ProductFilter{
		NameSubstring: strings.TrimSpace(q.Search),
		MinPrice:      q.MinPrice,
		MaxPrice:      q.MaxPrice,
		ActiveOnly:    true,
		SortBy:        repository.SortByCreatedAt,
	}
	if q.Category != "" {
		c := domain.Category(q.Category)
		if !c.Valid() {
			return nil, fmt.Errorf("%w: invalid category, must be one of sweaters, jackets, pants, hoodies", domain.ErrInvalidInput)
		}
		f.Category = c
	}
	switch repository.SortField(q.SortBy) {
	case "":
	case repository.SortByCreatedAt, repository.SortByPrice, repository.SortByName, repository.SortByRating:
		f.SortBy = repository.SortField(q.SortBy)
	default:
		return nil, fmt.Errorf("%w: sortBy must be one of createdAt, price, name, rating", domain.ErrInvalidInput)
	}
	switch q.SortOrder {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return nil, fmt.Errorf("%w: sortOrder must be asc or desc", domain.ErrInvalidInput)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, fmt.Errorf("%w: minPrice exceeds maxPrice", domain.ErrInvalidInput)
	}
	f.Page = normalizePage(q.Page, q.Limit, defaultCatalogLimit, maxCatalogLimit)

	list, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	pages := totalPages(total, f.Page.Limit)
	return &CatalogPage{
		Products: list,
		Pagination: CatalogPagination{
			Page:          f.Page.Number,
			Limit:         f.Page.Limit,
			TotalProducts: total,
			TotalPages:    pages,
			HasNextPage:   f.Page.Number < pages,
			HasPrevPage:   f.Page.Number > 1,
		},
	}, nil
}

func normalizePage(page, limit, def, max int64) repository.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return repository.Page{Number: page, Limit: limit}
}

func totalPages(total, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
