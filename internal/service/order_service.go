package service

//go:generate mockgen -destination=mock_notify_test.go -package=service storefront/internal/notify Notifier
//go:generate mockgen -destination=mock_events_test.go -package=service storefront/internal/events Publisher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/telemetry"
)

const (
	maxNumberAttempts       = 3
	defaultHistoryLimit     = 10
	maxHistoryLimit         = 100
	defaultConfirmationTTL  = 24 * time.Hour
	defaultSideEffectWindow = 30 * time.Second
)

// OrderDeps зависимости OrderService
type OrderDeps struct {
	Carts    repository.CartRepository
	Products repository.ProductRepository
	Orders   repository.OrderRepository
	Users    repository.UserRepository
	Ledger   *Ledger
	Numbers  *OrderNumberGenerator
	Tx       repository.TxManager
	Notifier notify.Notifier
	Events   events.Publisher
	Metrics  *metrics.Metrics
}

// OrderOptions параметры ссылки подтверждения
type OrderOptions struct {
	PublicBaseURL   string
	ConfirmationTTL time.Duration
	// SideEffectTimeout лимит на письмо и публикацию события после коммита
	SideEffectTimeout time.Duration
}

// OrderService оформление заказа, история, отмена и подтверждение по ссылке
type OrderService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	ledger   *Ledger
	numbers  *OrderNumberGenerator
	tx       repository.TxManager
	notifier notify.Notifier
	events   events.Publisher
	metrics  *metrics.Metrics

	baseURL           string
	confirmationTTL   time.Duration
	sideEffectTimeout time.Duration

	now      func() time.Time
	newToken func() (string, error)

	wg sync.WaitGroup
}

func NewOrderService(d OrderDeps, opts OrderOptions) *OrderService {
	if d.Tx == nil {
		d.Tx = repository.NoTx{}
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if opts.ConfirmationTTL <= 0 {
		opts.ConfirmationTTL = defaultConfirmationTTL
	}
	if opts.SideEffectTimeout <= 0 {
		opts.SideEffectTimeout = defaultSideEffectWindow
	}
	return &OrderService{
		carts:             d.Carts,
		products:          d.Products,
		orders:            d.Orders,
		users:             d.Users,
		ledger:            d.Ledger,
		numbers:           d.Numbers,
		tx:                d.Tx,
		notifier:          d.Notifier,
		events:            d.Events,
		metrics:           d.Metrics,
		baseURL:           opts.PublicBaseURL,
		confirmationTTL:   opts.ConfirmationTTL,
		sideEffectTimeout: opts.SideEffectTimeout,
		now:               func() time.Time { return time.Now().UTC() },
		newToken:          newConfirmationToken,
	}
}

// Checkout превращает корзину пользователя в заказ.
// Создание заказа и резерв остатков выполняются в одной транзакции;
// без транзакций уже списанное возвращается, а заказ переводится в failed.
func (s *OrderService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "OrderService.Checkout",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	started := time.Now()
	o, err := s.checkout(ctx, userID)
	s.metrics.ObserveCheckout(checkoutOutcome(err), time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.number", o.OrderNumber))
	return o, nil
}

func (s *OrderService) checkout(ctx context.Context, userID string) (*domain.Order, error) {
	log := logging.FromContext(ctx).With(zap.String("user_id", userID))

	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		// authenticated caller without an account is an internal fault
		return nil, fmt.Errorf("load purchasing user %s: %v", userID, err)
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, line.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, p.Name)
		}
		if available := p.StockOf(line.Size, line.Color); line.Quantity > available {
			return nil, &domain.InsufficientStockError{ProductName: p.Name, Size: line.Size, Color: line.Color, Available: available}
		}
		items = append(items, domain.NewOrderItem(p, line))
	}
	total := domain.SumItems(items)

	var order *domain.Order
	for attempt := 1; ; attempt++ {
		order, err = s.placeOrder(ctx, userID, items, total)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			log.Info("checkout_failed", zap.Error(err))
			return nil, err
		}
		if attempt == maxNumberAttempts {
			return nil, fmt.Errorf("%w after %d attempts", domain.ErrDuplicateNumber, attempt)
		}
		log.Warn("order_number_collision", zap.Int("attempt", attempt), zap.Error(err))
	}
	log.Info("order_created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	s.metrics.OrderStatus(string(domain.OrderStatusPending))

	snapshot := order.Clone()
	s.async(ctx, func(ctx context.Context) {
		s.sendConfirmation(ctx, user, &snapshot)
		s.publish(ctx, events.OrderCreated, &snapshot)
	})

	if err := s.clearOrdered(ctx, userID, order.Items); err != nil {
		log.Error("cart_clear_failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
	}
	return order, nil
}

// clearOrdered убирает из текущей корзины только заказанные строки
func (s *OrderService) clearOrdered(ctx context.Context, userID string, items []domain.OrderItem) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cur, err := s.carts.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		cur.RemoveOrdered(items)
		return s.carts.Save(ctx, cur)
	})
}

// placeOrder одна попытка: номер, токен, вставка заказа и резерв в транзакции
func (s *OrderService) placeOrder(ctx context.Context, userID string, items []domain.OrderItem, total decimal.Decimal) (*domain.Order, error) {
	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, err
	}
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.confirmationTTL)
	o := &domain.Order{
		UserID:                userID,
		OrderNumber:           number,
		Items:                 items,
		TotalAmount:           total,
		Status:                domain.OrderStatusPending,
		ConfirmationToken:     token,
		ConfirmationExpiresAt: &expires,
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		if err := s.ledger.ReserveAll(ctx, o.Items); err != nil {
			note := "stock reservation failed: " + err.Error()
			if _, terr := s.orders.TransitionStatus(ctx, o.ID, []domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusFailed, note); terr != nil {
				logging.FromContext(ctx).Error("order_fail_transition_failed", zap.String("order_id", o.ID), zap.Error(terr))
			} else {
				s.metrics.OrderStatus(string(domain.OrderStatusFailed))
			}
			logging.FromContext(ctx).Warn("reservation_failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) confirmURL(o *domain.Order) string {
	q := url.Values{}
	q.Set("orderNumber", o.OrderNumber)
	q.Set("token", o.ConfirmationToken)
	return s.baseURL + "/api/v1/orders/confirm?" + q.Encode()
}

func (s *OrderService) sendConfirmation(ctx context.Context, user *domain.User, o *domain.Order) {
	if s.notifier == nil {
		return
	}
	ctx, span := telemetry.Tracer().Start(ctx, "OrderService.sendConfirmation",
		trace.WithAttributes(attribute.String("order.number", o.OrderNumber)))
	defer span.End()
	log := logging.FromContext(ctx).With(zap.String("order_number", o.OrderNumber))

	lines := make([]notify.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, notify.OrderLine{
			Name:     it.ProductName,
			Size:     it.Size,
			Color:    it.Color,
			Quantity: it.Quantity,
			Total:    it.ItemTotal.StringFixed(2),
		})
	}
	err := s.notifier.Send(ctx, user.Email, notify.TemplateOrderConfirmation, notify.OrderConfirmationData{
		FirstName:   user.FirstName,
		OrderNumber: o.OrderNumber,
		Items:       lines,
		TotalAmount: o.TotalAmount.StringFixed(2),
		ConfirmURL:  s.confirmURL(o),
		ExpiresIn:   s.confirmationTTL.String(),
	})
	s.metrics.SideEffect("email", err)
	if err != nil {
		span.RecordError(err)
		log.Error("confirmation_email_failed", zap.Error(err))
		return
	}
	if err := s.orders.MarkConfirmationSent(ctx, o.ID, s.now()); err != nil {
		log.Error("confirmation_mark_failed", zap.Error(err))
		return
	}
	log.Info("confirmation_email_sent")
}

func (s *OrderService) publish(ctx context.Context, typ string, o *domain.Order) {
	err := s.events.Publish(ctx, events.NewOrderEvent(typ, o, s.now()))
	s.metrics.SideEffect("event", err)
	if err != nil {
		logging.FromContext(ctx).Error("order_event_publish_failed",
			zap.String("event", typ), zap.String("order_number", o.OrderNumber), zap.Error(err))
	}
}

// async побочный эффект после коммита: не блокирует ответ и не откатывает заказ
func (s *OrderService) async(ctx context.Context, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait дожидается фоновых писем и событий; вызывается при остановке
func (s *OrderService) Wait() { s.wg.Wait() }

// OrderSummary строка истории заказов
type OrderSummary struct {
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	TotalItems  int64              `json:"totalItems"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Status      domain.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type HistoryPagination struct {
	Page        int64 `json:"page"`
	Limit       int64 `json:"limit"`
	TotalOrders int64 `json:"totalOrders"`
	TotalPages  int64 `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type OrderHistory struct {
	Orders     []OrderSummary    `json:"orders"`
	Pagination HistoryPagination `json:"pagination"`
}

// History заказы пользователя, новые первыми
func (s *OrderService) History(ctx context.Context, userID string, page, limit int64) (*OrderHistory, error) {
	p := normalizePage(page, limit, defaultHistoryLimit, maxHistoryLimit)
	list, total, err := s.orders.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	out := make([]OrderSummary, 0, len(list))
	for i := range list {
		o := &list[i]
		out = append(out, OrderSummary{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			TotalItems:  o.TotalItems(),
			TotalAmount: o.TotalAmount,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
		})
	}
	pages := totalPages(total, p.Limit)
	return &OrderHistory{
		Orders: out,
		Pagination: HistoryPagination{
			Page:        p.Number,
			Limit:       p.Limit,
			TotalOrders: total,
			TotalPages:  pages,
			HasNextPage: p.Number < pages,
			HasPrevPage: p.Number > 1,
		},
	}, nil
}

// Get заказ владельца; чужой заказ даёт ErrNotOwner
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	return o, nil
}

func (s *OrderService) load(ctx context.Context, orderID string) (*domain.Order, error) {
	if !repository.ValidID(orderID) {
		return nil, domain.ErrInvalidID
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	return o, err
}

// Cancel отменяет заказ и возвращает остатки.
// Остатки возвращает только тот вызов, который выиграл условный переход статуса.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "OrderService.Cancel",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.CheckCancel(userID); err != nil {
		return nil, err
	}

	var cancelled *domain.Order
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		updated, err := s.orders.TransitionStatus(ctx, o.ID, domain.CancellableStatuses, domain.OrderStatusCancelled, "cancelled by customer")
		if err != nil {
			return err
		}
		if err := s.ledger.ReleaseAll(ctx, updated.Items); err != nil {
			logging.FromContext(ctx).Error("stock_release_failed", zap.String("order_id", o.ID), zap.Error(err))
			return err
		}
		cancelled = updated
		return nil
	})
	if errors.Is(err, repository.ErrStaleState) {
		// lost the race: report the status that won
		cur, lerr := s.load(ctx, orderID)
		if lerr != nil {
			return nil, lerr
		}
		return nil, &domain.StatusError{Kind: domain.ErrCannotCancel, Status: cur.Status}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logging.FromContext(ctx).Info("order_cancelled",
		zap.String("order_id", cancelled.ID), zap.String("order_number", cancelled.OrderNumber))
	s.metrics.OrderStatus(string(domain.OrderStatusCancelled))
	snapshot := cancelled.Clone()
	s.async(ctx, func(ctx context.Context) { s.publish(ctx, events.OrderCancelled, &snapshot) })
	return cancelled, nil
}

// Confirm гасит токен подтверждения: pending -> confirmed ровно один раз
func (s *OrderService) Confirm(ctx context.Context, orderNumber, token string) (*domain.Order, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "OrderService.Confirm",
		trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	if orderNumber == "" || token == "" {
		return nil, fmt.Errorf("%w: missing token or order number", domain.ErrInvalidInput)
	}
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := o.CheckConfirm(token, now); err != nil {
		return nil, err
	}

	confirmed, err := s.orders.ConfirmPending(ctx, orderNumber, token, now)
	if errors.Is(err, repository.ErrStaleState) {
		cur, gerr := s.orders.GetByNumber(ctx, orderNumber)
		if gerr != nil {
			return nil, gerr
		}
		if cerr := cur.CheckConfirm(token, now); cerr != nil {
			return nil, cerr
		}
		return nil, &domain.StatusError{Kind: domain.ErrAlreadyProcessed, Status: cur.Status}
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logging.FromContext(ctx).Info("order_confirmed", zap.String("order_number", orderNumber))
	s.metrics.OrderStatus(string(domain.OrderStatusConfirmed))
	snapshot := confirmed.Clone()
	s.async(ctx, func(ctx context.Context) { s.publish(ctx, events.OrderConfirmed, &snapshot) })
	return confirmed, nil
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrProductUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// newConfirmationToken 32 случайных байта в hex
func newConfirmationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("confirmation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
