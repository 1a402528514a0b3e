package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category категория каталога
type Category string

const (
	CategorySweaters Category = "sweaters"
	CategoryJackets  Category = "jackets"
	CategoryPants    Category = "pants"
	CategoryHoodies  Category = "hoodies"
)

// Valid сообщает, входит ли категория в каталог
func (c Category) Valid() bool {
	switch c {
	case CategorySweaters, CategoryJackets, CategoryPants, CategoryHoodies:
		return true
	}
	return false
}

// Variant комбинация размер/цвет, единица учёта остатков
type Variant struct {
	Size  string `json:"size" bson:"size"`
	Color string `json:"color" bson:"color"`
	Stock int64  `json:"stock" bson:"stock"`
	SKU   string `json:"sku" bson:"sku"`
}

// VariantKey адресует конкретный вариант товара
type VariantKey struct {
	ProductID string
	Size      string
	Color     string
}

// Rating агрегированная оценка товара
type Rating struct {
	Average float64 `json:"average" bson:"average"`
	Count   int64   `json:"count" bson:"count"`
}

// Product товар каталога
type Product struct {
	ID             string           `json:"id" bson:"_id"`
	Name           string           `json:"name" bson:"name"`
	Description    string           `json:"description" bson:"description"`
	Price          decimal.Decimal  `json:"price" bson:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice,omitempty" bson:"compareAtPrice,omitempty"`
	Category       Category         `json:"category" bson:"category"`
	Images         []string         `json:"images" bson:"images"`
	Variants       []Variant        `json:"variants" bson:"variants"`
	InStock        bool             `json:"inStock" bson:"inStock"`
	IsActive       bool             `json:"isActive" bson:"isActive"`
	Rating         Rating           `json:"rating" bson:"rating"`
	CreatedAt      time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// Variant ищет вариант по размеру и цвету
func (p *Product) Variant(size, color string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Size == size && p.Variants[i].Color == color {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// StockOf возвращает остаток варианта; отсутствующий вариант считается пустым
func (p *Product) StockOf(size, color string) int64 {
	if v, ok := p.Variant(size, color); ok {
		return v.Stock
	}
	return 0
}

// TotalStock сумма остатков по всем вариантам
func (p *Product) TotalStock() int64 {
	var total int64
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// RecomputeInStock выставляет флаг наличия: true, если хотя бы один вариант > 0
func (p *Product) RecomputeInStock() {
	p.InStock = false
	for _, v := range p.Variants {
		if v.Stock > 0 {
			p.InStock = true
			return
		}
	}
}

// FirstImage первое изображение или пустая строка
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Clone глубокая копия для хранилищ
func (p Product) Clone() Product {
	cp := p
	cp.Images = append([]string(nil), p.Images...)
	cp.Variants = append([]Variant(nil), p.Variants...)
	if p.CompareAtPrice != nil {
		v := *p.CompareAtPrice
		cp.CompareAtPrice = &v
	}
	return cp
}

// CartItem строка корзины
type CartItem struct {
	ProductID string `json:"productId" bson:"productId"`
	Size      string `json:"size" bson:"size"`
	Color     string `json:"color" bson:"color"`
	Quantity  int64  `json:"quantity" bson:"quantity"`
}

// Key ключ варианта строки
func (i CartItem) Key() VariantKey {
	return VariantKey{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}

// Cart корзина пользователя, одна на userId
type Cart struct {
	ID        string     `json:"id" bson:"_id"`
	UserID    string     `json:"userId" bson:"userId"`
	Items     []CartItem `json:"items" bson:"items"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// IndexOf позиция строки с данным ключом или -1
func (c *Cart) IndexOf(key VariantKey) int {
	for i, it := range c.Items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

// RemoveOrdered вычитает заказанные количества; строки, добавленные после снимка корзины, остаются
func (c *Cart) RemoveOrdered(items []OrderItem) {
	ordered := make(map[VariantKey]int64, len(items))
	for _, it := range items {
		ordered[it.Key()] += it.Quantity
	}
	kept := make([]CartItem, 0, len(c.Items))
	for _, line := range c.Items {
		line.Quantity -= ordered[line.Key()]
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	c.Items = kept
}

func (c Cart) Clone() Cart {
	cp := c
	cp.Items = append([]CartItem(nil), c.Items...)
	return cp
}

// AccountStatus статус подтверждения e-mail
type AccountStatus string

const (
	AccountVerified   AccountStatus = "VERIFIED"
	AccountUnverified AccountStatus = "UNVERIFIED"
)

// User покупатель
type User struct {
	ID                    string        `json:"id" bson:"_id"`
	Email                 string        `json:"email" bson:"email"`
	PasswordHash          string        `json:"-" bson:"passwordHash"`
	FirstName             string        `json:"firstName" bson:"firstName"`
	LastName              string        `json:"lastName,omitempty" bson:"lastName,omitempty"`
	Phone                 string        `json:"phone,omitempty" bson:"phone,omitempty"`
	Avatar                string        `json:"avatar,omitempty" bson:"avatar,omitempty"`
	AccountStatus         AccountStatus `json:"accountStatus" bson:"accountStatus"`
	VerificationCode      string        `json:"-" bson:"verificationCode,omitempty"`
	VerificationExpiresAt *time.Time    `json:"-" bson:"verificationExpiresAt,omitempty"`
	LastLogin             *time.Time    `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt             time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// WishlistItem товар в избранном
type WishlistItem struct {
	ProductID string    `json:"productId" bson:"productId"`
	AddedAt   time.Time `json:"addedAt" bson:"addedAt"`
}

// Wishlist избранное пользователя, уникально по productId
type Wishlist struct {
	ID        string         `json:"id" bson:"_id"`
	UserID    string         `json:"userId" bson:"userId"`
	Items     []WishlistItem `json:"items" bson:"items"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Contains есть ли товар в избранном
func (w *Wishlist) Contains(productID string) bool {
	for _, it := range w.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

func (w Wishlist) Clone() Wishlist {
	cp := w
	cp.Items = append([]WishlistItem(nil), w.Items...)
	return cp
}
