package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/notify"
	"storefront/internal/repository"
)

type orderFixture struct {
	store    *repository.MemoryStore
	orders   *repository.MemoryOrders
	carts    *repository.MemoryCarts
	users    *repository.MemoryUsers
	svc      *OrderService
	cartSvc  *CartService
	hoodie   *domain.Product
	chinos   *domain.Product
	notifier *MockNotifier
	events   *eventLog
}

// eventLog собирает опубликованные события
type eventLog struct {
	mu   sync.Mutex
	list []events.OrderEvent
}

func (l *eventLog) add(ev events.OrderEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append(l.list, ev)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.list))
	for _, ev := range l.list {
		out = append(out, ev.Type)
	}
	return out
}

type fixtureOption func(*OrderDeps)

func setupOrders(t *testing.T, opts ...fixtureOption) *orderFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := repository.NewMemoryStore()
	f := &orderFixture{
		store:    store,
		orders:   repository.NewMemoryOrders(store),
		carts:    repository.NewMemoryCarts(store),
		users:    repository.NewMemoryUsers(store),
		notifier: NewMockNotifier(ctrl),
		events:   &eventLog{},
	}
	pub := NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev events.OrderEvent) error {
		f.events.add(ev)
		return nil
	}).AnyTimes()

	deps := OrderDeps{
		Carts:    f.carts,
		Products: store,
		Orders:   f.orders,
		Users:    f.users,
		Ledger:   NewLedger(store),
		Numbers:  NewOrderNumberGenerator(repository.NewMemorySequence(store)),
		Tx:       repository.NewMemoryTx(store),
		Notifier: f.notifier,
		Events:   pub,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewOrderService(deps, OrderOptions{PublicBaseURL: "http://shop.test", ConfirmationTTL: time.Hour})
	f.cartSvc = NewCartService(f.carts, store)
	t.Cleanup(f.svc.Wait)

	ps := NewProductService(store)
	var err error
	f.hoodie, err = ps.Create(context.Background(), domain.Product{
		Name: "Classic Pullover Hoodie", Price: decimal.RequireFromString("45.99"), Category: domain.CategoryHoodies, IsActive: true,
		Variants: []domain.Variant{{Size: "M", Color: "Black", Stock: 20, SKU: "HOD-CLS-M-BLK"}},
	})
	if err != nil {
		t.Fatalf("create hoodie: %v", err)
	}
	f.chinos, err = ps.Create(context.Background(), domain.Product{
		Name: "Slim Fit Chinos", Price: decimal.RequireFromString("58.99"), Category: domain.CategoryPants, IsActive: true,
		Variants: []domain.Variant{{Size: "32", Color: "Khaki", Stock: 22, SKU: "PNT-CHN-32-KHK"}},
	})
	if err != nil {
		t.Fatalf("create chinos: %v", err)
	}
	return f
}

func (f *orderFixture) user(t *testing.T, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, FirstName: "Jane", AccountStatus: domain.AccountVerified}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *orderFixture) addToCart(t *testing.T, userID string, p *domain.Product, qty int64) {
	t.Helper()
	v := p.Variants[0]
	if _, err := f.cartSvc.Add(context.Background(), userID, AddCartItem{ProductID: p.ID, Size: v.Size, Color: v.Color, Quantity: qty}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
}

func (f *orderFixture) stock(t *testing.T, p *domain.Product) int64 {
	t.Helper()
	got, err := f.store.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return got.Variants[0].Stock
}

func (f *orderFixture) expectEmail(err error) {
	f.notifier.EXPECT().Send(gomock.Any(), gomock.Any(), notify.TemplateOrderConfirmation, gomock.Any()).Return(err).AnyTimes()
}

func TestCheckout_CreatesPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	u := f.user(t, "jane@example.com")

	var sent notify.OrderConfirmationData
	f.notifier.EXPECT().Send(gomock.Any(), "jane@example.com", notify.TemplateOrderConfirmation, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, data any) error {
			sent = data.(notify.OrderConfirmationData)
			return nil
		})

	f.addToCart(t, u.ID, f.hoodie, 2)
	f.addToCart(t, u.ID, f.chinos, 1)

	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if o.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", o.Status)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("150.97")) {
		t.Fatalf("expected total 150.97, got %s", o.TotalAmount)
	}
	if !strings.HasPrefix(o.OrderNumber, "ORD-"+time.Now().UTC().Format("20060102")+"-") {
		t.Fatalf("unexpected order number %s", o.OrderNumber)
	}
	if len(o.ConfirmationToken) != 64 {
		t.Fatalf("expected 64 hex chars token, got %q", o.ConfirmationToken)
	}
	if f.stock(t, f.hoodie) != 18 || f.stock(t, f.chinos) != 21 {
		t.Fatalf("stock not reserved: %d %d", f.stock(t, f.hoodie), f.stock(t, f.chinos))
	}
	cart, _ := f.cartSvc.Get(ctx, u.ID)
	if len(cart.Items) != 0 {
		t.Fatalf("cart not cleared: %+v", cart.Items)
	}

	f.svc.Wait()
	if sent.OrderNumber != o.OrderNumber || sent.TotalAmount != "150.97" || len(sent.Items) != 2 {
		t.Fatalf("unexpected email data: %+v", sent)
	}
	if !strings.Contains(sent.ConfirmURL, "http://shop.test/api/v1/orders/confirm?") || !strings.Contains(sent.ConfirmURL, "token="+o.ConfirmationToken) {
		t.Fatalf("unexpected confirm url %s", sent.ConfirmURL)
	}
	stored, _ := f.orders.GetByID(ctx, o.ID)
	if !stored.ConfirmationEmailSent || stored.ConfirmationEmailSentAt == nil {
		t.Fatalf("confirmation email not marked as sent")
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.OrderCreated {
		t.Fatalf("expected order.created event, got %v", got)
	}
}

// racingCarts добавляет строку в корзину сразу после того, как checkout прочитал её
type racingCarts struct {
	*repository.MemoryCarts
	once   sync.Once
	onLoad func()
}

func (c *racingCarts) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := c.MemoryCarts.GetOrCreate(ctx, userID)
	c.once.Do(c.onLoad)
	return cart, err
}

func TestCheckout_KeepsLinesAddedDuringCheckout(t *testing.T) {
	ctx := context.Background()
	rc := &racingCarts{}
	f := setupOrders(t, func(d *OrderDeps) {
		rc.MemoryCarts = d.Carts.(*repository.MemoryCarts)
		d.Carts = rc
	})
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 2)
	rc.onLoad = func() { f.addToCart(t, u.ID, f.chinos, 1) }

	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].ProductID != f.hoodie.ID {
		t.Fatalf("order must contain only the snapshot lines: %+v", o.Items)
	}
	cart, _ := f.carts.GetOrCreate(ctx, u.ID)
	if len(cart.Items) != 1 || cart.Items[0].ProductID != f.chinos.ID || cart.Items[0].Quantity != 1 {
		t.Fatalf("late line must stay in the cart: %+v", cart.Items)
	}
	if got := f.stock(t, f.chinos); got != 22 {
		t.Fatalf("chinos must not be reserved: %d", got)
	}
}

func TestCheckout_EmailFailureKeepsOrder(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(errors.New("smtp down"))
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 1)

	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout must succeed when email fails: %v", err)
	}
	f.svc.Wait()
	stored, _ := f.orders.GetByID(ctx, o.ID)
	if stored.ConfirmationEmailSent {
		t.Fatalf("confirmationEmailSent must stay false")
	}
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", stored.Status)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := setupOrders(t)
	u := f.user(t, "jane@example.com")
	if _, err := f.svc.Checkout(context.Background(), u.ID); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestCheckout_InsufficientStockLeavesCart(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 2)

	// stock drained after the item was added
	p, _ := f.store.GetByID(ctx, f.hoodie.ID)
	p.Variants[0].Stock = 0
	if err := f.store.Update(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := f.svc.Checkout(ctx, u.ID)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 0 || stockErr.ProductName != "Classic Pullover Hoodie" {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	cart, _ := f.cartSvc.Get(ctx, u.ID)
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("cart must be unchanged: %+v", cart.Items)
	}
	hist, _ := f.svc.History(ctx, u.ID, 1, 10)
	if hist.Pagination.TotalOrders != 0 {
		t.Fatalf("no order expected, got %d", hist.Pagination.TotalOrders)
	}
}

func TestCheckout_InactiveProduct(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 1)

	p, _ := f.store.GetByID(ctx, f.hoodie.ID)
	p.IsActive = false
	_ = f.store.Update(ctx, p)

	if _, err := f.svc.Checkout(ctx, u.ID); !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)

	p, _ := f.store.GetByID(ctx, f.hoodie.ID)
	p.Variants[0].Stock = 1
	_ = f.store.Update(ctx, p)

	buyers := []*domain.User{f.user(t, "a@example.com"), f.user(t, "b@example.com")}
	for _, u := range buyers {
		f.addToCart(t, u.ID, f.hoodie, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, u := range buyers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(ctx, id)
		}(i, u.ID)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || short != 1 {
		t.Fatalf("expected one success and one insufficient stock, got %d/%d", ok, short)
	}
	if got := f.stock(t, f.hoodie); got != 0 {
		t.Fatalf("stock must not go negative, got %d", got)
	}
}

func TestCheckout_ConcurrentOrderNumbersUnique(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)

	const n = 50
	ids := make([]string, n)
	for i := range ids {
		u := f.user(t, fmt.Sprintf("buyer%d@example.com", i))
		f.addToCart(t, u.ID, f.chinos, 1)
		ids[i] = u.ID
	}
	p, _ := f.store.GetByID(ctx, f.chinos.ID)
	p.Variants[0].Stock = n
	_ = f.store.Update(ctx, p)

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			o, err := f.svc.Checkout(ctx, id)
			if err != nil {
				t.Errorf("checkout: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[o.OrderNumber] {
				t.Errorf("duplicate order number %s", o.OrderNumber)
			}
			seen[o.OrderNumber] = true
		}(id)
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d orders, got %d", n, len(seen))
	}
}

// fixedSequence всегда выдаёт один и тот же номер
type fixedSequence struct{}

func (fixedSequence) Next(context.Context, string) (int64, error) { return 1, nil }

func TestCheckout_DuplicateNumberRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t, func(d *OrderDeps) {
		d.Numbers = NewOrderNumberGenerator(fixedSequence{})
	})
	f.expectEmail(nil)
	a, b := f.user(t, "a@example.com"), f.user(t, "b@example.com")
	f.addToCart(t, a.ID, f.hoodie, 1)
	f.addToCart(t, b.ID, f.hoodie, 1)

	if _, err := f.svc.Checkout(ctx, a.ID); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, b.ID); !errors.Is(err, domain.ErrDuplicateNumber) {
		t.Fatalf("expected duplicate number, got %v", err)
	}
	if got := f.stock(t, f.hoodie); got != 19 {
		t.Fatalf("failed attempt must not reserve stock, got %d", got)
	}
}

// flakyInventory отказывает в резерве для одного варианта
type flakyInventory struct {
	repository.InventoryRepository
	fail string
}

func (i flakyInventory) Reserve(ctx context.Context, key domain.VariantKey, qty int64) error {
	if key.ProductID == i.fail {
		return &domain.InsufficientStockError{Size: key.Size, Color: key.Color}
	}
	return i.InventoryRepository.Reserve(ctx, key, qty)
}

func TestCheckout_ReservationRollback(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.svc.ledger = NewLedger(flakyInventory{InventoryRepository: f.store, fail: f.chinos.ID})

	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 2)
	f.addToCart(t, u.ID, f.chinos, 1)

	_, err := f.svc.Checkout(ctx, u.ID)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductName != "Slim Fit Chinos" {
		t.Fatalf("expected insufficient stock for chinos, got %v", err)
	}
	if got := f.stock(t, f.hoodie); got != 20 {
		t.Fatalf("hoodie reservation not rolled back, stock %d", got)
	}
	hist, _ := f.svc.History(ctx, u.ID, 1, 10)
	if len(hist.Orders) != 1 || hist.Orders[0].Status != domain.OrderStatusFailed {
		t.Fatalf("expected one failed order, got %+v", hist.Orders)
	}
	cart, _ := f.cartSvc.Get(ctx, u.ID)
	if len(cart.Items) != 2 {
		t.Fatalf("cart must be unchanged, got %d lines", len(cart.Items))
	}
}

func TestCancel_RestoresStockOnce(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 2)
	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	other := f.user(t, "mallory@example.com")
	if _, err := f.svc.Cancel(ctx, other.ID, o.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, u.ID, o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.stock(t, f.hoodie); got != 20 {
		t.Fatalf("stock not restored: %d", got)
	}

	_, err = f.svc.Cancel(ctx, u.ID, o.ID)
	var statusErr *domain.StatusError
	if !errors.Is(err, domain.ErrCannotCancel) || !errors.As(err, &statusErr) || statusErr.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cannot cancel, got %v", err)
	}
	if got := f.stock(t, f.hoodie); got != 20 {
		t.Fatalf("stock restored twice: %d", got)
	}

	f.svc.Wait()
	got := strings.Join(f.events.types(), ",")
	if !strings.Contains(got, events.OrderCreated) || !strings.Contains(got, events.OrderCancelled) {
		t.Fatalf("expected created and cancelled events, got %v", got)
	}
}

func TestCancel_ProductDeleted(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 2)
	f.addToCart(t, u.ID, f.chinos, 1)
	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := NewProductService(f.store).Delete(ctx, f.chinos.ID); err != nil {
		t.Fatalf("delete chinos: %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, u.ID, o.ID)
	if err != nil {
		t.Fatalf("cancel must succeed without the deleted product: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.stock(t, f.hoodie); got != 20 {
		t.Fatalf("hoodie stock not restored: %d", got)
	}
	stored, err := f.orders.GetByID(ctx, o.ID)
	if err != nil || stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("stored order must be cancelled: %v", err)
	}
}

func TestCancel_ConcurrentReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 3)
	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Cancel(ctx, u.ID, o.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Fatalf("expected exactly one successful cancel, got %d", ok)
	}
	if got := f.stock(t, f.hoodie); got != 20 {
		t.Fatalf("expected stock 20, got %d", got)
	}
}

func TestCancel_UnknownAndInvalidID(t *testing.T) {
	f := setupOrders(t)
	u := f.user(t, "jane@example.com")
	if _, err := f.svc.Cancel(context.Background(), u.ID, "nope"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), u.ID, repository.NewID()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}

func TestConfirm_Flow(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 1)
	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if _, err := f.svc.Confirm(ctx, o.OrderNumber, strings.Repeat("0", 64)); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "ORD-19700101-0001", o.ConfirmationToken); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
	if _, err := f.svc.Confirm(ctx, o.OrderNumber, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	confirmed, err := f.svc.Confirm(ctx, o.OrderNumber, o.ConfirmationToken)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.OrderStatusConfirmed || confirmed.ConfirmationToken != "" {
		t.Fatalf("expected confirmed with token cleared: %+v", confirmed)
	}
	if _, err := f.svc.Confirm(ctx, o.OrderNumber, o.ConfirmationToken); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}

	// confirmed orders can still be cancelled
	if _, err := f.svc.Cancel(ctx, u.ID, o.ID); err != nil {
		t.Fatalf("cancel confirmed: %v", err)
	}
}

func TestConfirm_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 1)
	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	f.svc.Wait()
	f.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if _, err := f.svc.Confirm(ctx, o.OrderNumber, o.ConfirmationToken); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected token expired, got %v", err)
	}
	stored, _ := f.orders.GetByID(ctx, o.ID)
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("expired confirm must not change status, got %s", stored.Status)
	}
}

func TestConfirm_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")
	f.addToCart(t, u.ID, f.hoodie, 1)
	o, err := f.svc.Checkout(ctx, u.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, processed int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Confirm(ctx, o.OrderNumber, o.ConfirmationToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyProcessed):
				processed++
			}
		}()
	}
	wg.Wait()
	if ok != 1 || processed != 9 {
		t.Fatalf("expected 1 winner and 9 already processed, got %d/%d", ok, processed)
	}
}

func TestHistoryAndGet(t *testing.T) {
	ctx := context.Background()
	f := setupOrders(t)
	f.expectEmail(nil)
	u := f.user(t, "jane@example.com")

	var last *domain.Order
	for i := 0; i < 3; i++ {
		f.addToCart(t, u.ID, f.hoodie, 1)
		o, err := f.svc.Checkout(ctx, u.ID)
		if err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
		last = o
	}

	hist, err := f.svc.History(ctx, u.ID, 1, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	p := hist.Pagination
	if len(hist.Orders) != 2 || p.TotalOrders != 3 || p.TotalPages != 2 || !p.HasNextPage || p.HasPrevPage {
		t.Fatalf("unexpected page: %+v (%d orders)", p, len(hist.Orders))
	}
	if hist.Orders[0].OrderNumber != last.OrderNumber {
		t.Fatalf("expected newest first, got %s", hist.Orders[0].OrderNumber)
	}
	if hist.Orders[0].TotalItems != 1 || !hist.Orders[0].TotalAmount.Equal(decimal.RequireFromString("45.99")) {
		t.Fatalf("unexpected summary: %+v", hist.Orders[0])
	}

	page2, _ := f.svc.History(ctx, u.ID, 2, 2)
	if len(page2.Orders) != 1 || page2.Pagination.HasNextPage || !page2.Pagination.HasPrevPage {
		t.Fatalf("unexpected second page: %+v", page2.Pagination)
	}
	defaults, _ := f.svc.History(ctx, u.ID, 0, 0)
	if defaults.Pagination.Page != 1 || defaults.Pagination.Limit != 10 {
		t.Fatalf("unexpected defaults: %+v", defaults.Pagination)
	}

	got, err := f.svc.Get(ctx, u.ID, last.ID)
	if err != nil || got.OrderNumber != last.OrderNumber {
		t.Fatalf("get: %v", err)
	}
	other := f.user(t, "mallory@example.com")
	if _, err := f.svc.Get(ctx, other.ID, last.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
}
