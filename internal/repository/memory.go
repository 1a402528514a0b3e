package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

// NewID генерирует идентификатор в формате ObjectID (hex), одинаковый для всех хранилищ
func NewID() string { return primitive.NewObjectID().Hex() }

// ValidID проверяет формат идентификатора
func ValidID(id string) bool { return primitive.IsValidObjectID(id) }

// MemoryStore объединённое in-memory хранилище
type MemoryStore struct {
	mu             sync.RWMutex
	productsByID   map[string]domain.Product
	ordersByID     map[string]domain.Order
	orderIDsByNum  map[string]string
	cartsByUser    map[string]domain.Cart
	wishesByUser   map[string]domain.Wishlist
	usersByID      map[string]domain.User
	userIDsByEmail map[string]string
	seqByDay       map[string]int64
	now            func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		productsByID:   make(map[string]domain.Product),
		ordersByID:     make(map[string]domain.Order),
		orderIDsByNum:  make(map[string]string),
		cartsByUser:    make(map[string]domain.Cart),
		wishesByUser:   make(map[string]domain.Wishlist),
		usersByID:      make(map[string]domain.User),
		userIDsByEmail: make(map[string]string),
		seqByDay:       make(map[string]int64),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ ProductRepository   = (*MemoryStore)(nil)
	_ InventoryRepository = (*MemoryStore)(nil)
)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, v := range p.Variants {
		if m.skuTaken(v.SKU, "") {
			return ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	if _, ok := m.productsByID[p.ID]; ok {
		return ErrDuplicate
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	p.RecomputeInStock()
	m.productsByID[p.ID] = p.Clone()
	return nil
}

func (m *MemoryStore) skuTaken(sku, exceptID string) bool {
	for id, p := range m.productsByID {
		if id == exceptID {
			continue
		}
		for _, v := range p.Variants {
			if v.SKU == sku {
				return true
			}
		}
	}
	return false
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p.Clone()
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	cur, ok := m.productsByID[p.ID]
	if !ok {
		return ErrNotFound
	}
	for _, v := range p.Variants {
		if m.skuTaken(v.SKU, p.ID) {
			return ErrDuplicate
		}
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = m.now()
	p.RecomputeInStock()
	m.productsByID[p.ID] = p.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, int64, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if !containsIgnoreCase(p.Name, f.NameSubstring) && !containsIgnoreCase(p.Description, f.NameSubstring) {
			continue
		}
		price, _ := p.Price.Float64()
		if f.MinPrice != nil && price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && price > *f.MaxPrice {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		less := lessProduct(out[i], out[j], f.SortBy)
		if f.Ascending {
			return less
		}
		return lessProduct(out[j], out[i], f.SortBy)
	})
	total := int64(len(out))
	return paginate(out, f.Page), total, nil
}

func lessProduct(a, b domain.Product, by SortField) bool {
	switch by {
	case SortByPrice:
		return a.Price.LessThan(b.Price)
	case SortByName:
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	case SortByRating:
		return a.Rating.Average < b.Rating.Average
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func paginate[T any](items []T, p Page) []T {
	if p.Limit <= 0 {
		return items
	}
	skip := p.Skip()
	if skip >= int64(len(items)) {
		return []T{}
	}
	end := skip + p.Limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[skip:end]
}

// InventoryRepository implementation: проверка и списание под одной блокировкой
func (m *MemoryStore) Reserve(ctx context.Context, key domain.VariantKey, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[key.ProductID]
	if !ok {
		return ErrNotFound
	}
	p = p.Clone()
	v, ok := p.Variant(key.Size, key.Color)
	if !ok || v.Stock < qty {
		return &domain.InsufficientStockError{ProductName: p.Name, Size: key.Size, Color: key.Color, Available: p.StockOf(key.Size, key.Color)}
	}
	v.Stock -= qty
	p.RecomputeInStock()
	p.UpdatedAt = m.now()
	m.productsByID[p.ID] = p
	return nil
}

func (m *MemoryStore) Release(ctx context.Context, key domain.VariantKey, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[key.ProductID]
	if !ok {
		return ErrNotFound
	}
	p = p.Clone()
	v, ok := p.Variant(key.Size, key.Color)
	if !ok {
		return ErrNotFound
	}
	v.Stock += qty
	p.RecomputeInStock()
	p.UpdatedAt = m.now()
	m.productsByID[p.ID] = p
	return nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.orderIDsByNum[o.OrderNumber]; ok {
		return ErrDuplicate
	}
	if o.ID == "" {
		o.ID = NewID()
	}
	o.CreatedAt = mo.store.now()
	o.UpdatedAt = o.CreatedAt
	mo.store.ordersByID[o.ID] = o.Clone()
	mo.store.orderIDsByNum[o.OrderNumber] = o.ID
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	id, ok := mo.store.orderIDsByNum[number]
	if !ok {
		return nil, ErrNotFound
	}
	cp := mo.store.ordersByID[id].Clone()
	return &cp, nil
}

func (mo *MemoryOrders) ListByUser(ctx context.Context, userID string, page Page) ([]domain.Order, int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.ordersByID {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNumber > out[j].OrderNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, page), int64(len(out)), nil
}

func (mo *MemoryOrders) TransitionStatus(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus, note string) (*domain.Order, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !statusIn(o.Status, from) {
		return nil, ErrStaleState
	}
	o = o.Clone()
	o.Status = to
	if note != "" {
		o.StatusNote = note
	}
	o.UpdatedAt = mo.store.now()
	mo.store.ordersByID[id] = o
	cp := o.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) ConfirmPending(ctx context.Context, number, token string, now time.Time) (*domain.Order, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	id, ok := mo.store.orderIDsByNum[number]
	if !ok {
		return nil, ErrNotFound
	}
	o := mo.store.ordersByID[id].Clone()
	if err := o.Confirm(token, now); err != nil {
		return nil, ErrStaleState
	}
	mo.store.ordersByID[id] = o
	cp := o.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) MarkConfirmationSent(ctx context.Context, id string, at time.Time) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return ErrNotFound
	}
	o = o.Clone()
	o.ConfirmationEmailSent = true
	o.ConfirmationEmailSentAt = &at
	mo.store.ordersByID[id] = o
	return nil
}

// MemoryCarts корзины поверх общего хранилища
type MemoryCarts struct{ store *MemoryStore }

func NewMemoryCarts(store *MemoryStore) *MemoryCarts { return &MemoryCarts{store: store} }

var _ CartRepository = (*MemoryCarts)(nil)

func (mc *MemoryCarts) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	c, ok := mc.store.cartsByUser[userID]
	if !ok {
		now := mc.store.now()
		c = domain.Cart{ID: NewID(), UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}
		mc.store.cartsByUser[userID] = c
	}
	cp := c.Clone()
	return &cp, nil
}

func (mc *MemoryCarts) Save(ctx context.Context, c *domain.Cart) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	cur, ok := mc.store.cartsByUser[c.UserID]
	if ok {
		c.ID = cur.ID
		c.CreatedAt = cur.CreatedAt
	} else {
		if c.ID == "" {
			c.ID = NewID()
		}
		c.CreatedAt = mc.store.now()
	}
	c.UpdatedAt = mc.store.now()
	mc.store.cartsByUser[c.UserID] = c.Clone()
	return nil
}

// MemoryWishlists избранное поверх общего хранилища
type MemoryWishlists struct{ store *MemoryStore }

func NewMemoryWishlists(store *MemoryStore) *MemoryWishlists { return &MemoryWishlists{store: store} }

var _ WishlistRepository = (*MemoryWishlists)(nil)

func (mw *MemoryWishlists) GetOrCreate(ctx context.Context, userID string) (*domain.Wishlist, error) {
	mw.store.wlock(ctx)
	defer mw.store.wunlock(ctx)
	w, ok := mw.store.wishesByUser[userID]
	if !ok {
		now := mw.store.now()
		w = domain.Wishlist{ID: NewID(), UserID: userID, Items: []domain.WishlistItem{}, CreatedAt: now, UpdatedAt: now}
		mw.store.wishesByUser[userID] = w
	}
	cp := w.Clone()
	return &cp, nil
}

func (mw *MemoryWishlists) Save(ctx context.Context, w *domain.Wishlist) error {
	mw.store.wlock(ctx)
	defer mw.store.wunlock(ctx)
	if cur, ok := mw.store.wishesByUser[w.UserID]; ok {
		w.ID = cur.ID
		w.CreatedAt = cur.CreatedAt
	} else if w.ID == "" {
		w.ID = NewID()
		w.CreatedAt = mw.store.now()
	}
	w.UpdatedAt = mw.store.now()
	mw.store.wishesByUser[w.UserID] = w.Clone()
	return nil
}

// MemoryUsers пользователи поверх общего хранилища
type MemoryUsers struct{ store *MemoryStore }

func NewMemoryUsers(store *MemoryStore) *MemoryUsers { return &MemoryUsers{store: store} }

var _ UserRepository = (*MemoryUsers)(nil)

func (mu *MemoryUsers) Create(ctx context.Context, u *domain.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	email := strings.ToLower(u.Email)
	if _, ok := mu.store.userIDsByEmail[email]; ok {
		return ErrDuplicate
	}
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = email
	u.CreatedAt = mu.store.now()
	u.UpdatedAt = u.CreatedAt
	mu.store.usersByID[u.ID] = *u
	mu.store.userIDsByEmail[email] = u.ID
	return nil
}

func (mu *MemoryUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	u, ok := mu.store.usersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (mu *MemoryUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	id, ok := mu.store.userIDsByEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := mu.store.usersByID[id]
	return &u, nil
}

func (mu *MemoryUsers) Update(ctx context.Context, u *domain.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	if _, ok := mu.store.usersByID[u.ID]; !ok {
		return ErrNotFound
	}
	u.UpdatedAt = mu.store.now()
	mu.store.usersByID[u.ID] = *u
	return nil
}

func (mu *MemoryUsers) Delete(ctx context.Context, id string) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	u, ok := mu.store.usersByID[id]
	if !ok {
		return ErrNotFound
	}
	delete(mu.store.userIDsByEmail, u.Email)
	delete(mu.store.usersByID, id)
	delete(mu.store.cartsByUser, id)
	delete(mu.store.wishesByUser, id)
	return nil
}

// MemorySequence дневной счётчик заказов
type MemorySequence struct{ store *MemoryStore }

func NewMemorySequence(store *MemoryStore) *MemorySequence { return &MemorySequence{store: store} }

func (ms *MemorySequence) Next(ctx context.Context, day string) (int64, error) {
	ms.store.wlock(ctx)
	defer ms.store.wunlock(ctx)
	ms.store.seqByDay[day]++
	return ms.store.seqByDay[day], nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
