package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "storefront/docs"
	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/events"
	httpapi "storefront/internal/http"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/seed"
	"storefront/internal/service"
	"storefront/internal/telemetry"
)

//	@title						Storefront API
//	@version					1.0
//	@description				Catalog, cart, wishlist and order checkout for the clothing store.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	// цены в JSON числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true

	app := &cli.App{
		Name:  "storefront",
		Usage: "clothing store backend",
		Flags: config.Flags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "seed",
				Usage:  "load the sample catalog and a verified demo user",
				Action: seedCatalog,
			},
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backend репозитории выбранного хранилища
type backend struct {
	products  repository.ProductRepository
	inventory repository.InventoryRepository
	orders    repository.OrderRepository
	carts     repository.CartRepository
	wishlists repository.WishlistRepository
	users     repository.UserRepository
	sequence  repository.OrderSequence
	tx        repository.TxManager
	close     func(context.Context) error
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	var b *backend
	if cfg.MongoURI == "" {
		log.Warn("mongo_uri_empty_using_memory_store")
		store := repository.NewMemoryStore()
		b = &backend{
			products:  store,
			inventory: store,
			orders:    repository.NewMemoryOrders(store),
			carts:     repository.NewMemoryCarts(store),
			wishlists: repository.NewMemoryWishlists(store),
			users:     repository.NewMemoryUsers(store),
			sequence:  repository.NewMemorySequence(store),
			tx:        repository.NewMemoryTx(store),
			close:     func(context.Context) error { return nil },
		}
	} else {
		store, err := repository.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		products := repository.NewMongoProducts(store)
		b = &backend{
			products:  products,
			inventory: products,
			orders:    repository.NewMongoOrders(store),
			carts:     repository.NewMongoCarts(store),
			wishlists: repository.NewMongoWishlists(store),
			users:     repository.NewMongoUsers(store),
			sequence:  repository.NewMongoSequence(store),
			tx:        repository.NoTx{},
			close:     store.Close,
		}
		if cfg.MongoTransactions {
			b.tx = repository.NewMongoTx(store)
		}
		log.Info("mongo_connected", zap.String("db", cfg.MongoDB), zap.Bool("transactions", cfg.MongoTransactions))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = b.close(ctx)
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		b.sequence = repository.NewRedisSequence(client)
		storeClose := b.close
		b.close = func(ctx context.Context) error {
			return errors.Join(client.Close(), storeClose(ctx))
		}
		log.Info("redis_sequence_enabled", zap.String("addr", cfg.RedisAddr))
	}
	return b, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	log, err := logging.NewLogger(cfg.ServiceName, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

func serve(c *cli.Context) error {
	cfg := config.FromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, log)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.SMTP.Host != "" {
		n, err := notify.NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			return err
		}
		notifier = n
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info("kafka_publisher_enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	m := metrics.New()
	creds := auth.NewCredentials(cfg.JWTSecret, cfg.JWTTTL)
	products := service.NewProductService(b.products)

	if cfg.Seed {
		if _, err := seed.Run(ctx, products, b.users, creds, seed.DefaultDemoUser); err != nil {
			_ = b.close(context.Background())
			return fmt.Errorf("seed: %w", err)
		}
	}

	orders := service.NewOrderService(service.OrderDeps{
		Carts:    b.carts,
		Products: b.products,
		Orders:   b.orders,
		Users:    b.users,
		Ledger:   service.NewLedger(b.inventory),
		Numbers:  service.NewOrderNumberGenerator(b.sequence),
		Tx:       b.tx,
		Notifier: notifier,
		Events:   publisher,
		Metrics:  m,
	}, service.OrderOptions{
		PublicBaseURL:   cfg.PublicBaseURL,
		ConfirmationTTL: cfg.ConfirmationTTL,
	})

	srv := httpapi.NewServer(httpapi.Services{
		Products:  products,
		Carts:     service.NewCartService(b.carts, b.products),
		Wishlists: service.NewWishlistService(b.wishlists, b.products),
		Auth:      service.NewAuthService(b.users, creds, notifier),
		Users:     service.NewUserService(b.users),
		Orders:    orders,
	}, httpapi.Options{
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Metrics:     m,
		Tokens:      creds,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown_started")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	runErr := g.Wait()

	// письма и события, запущенные последними запросами
	orders.Wait()

	cctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	closeErr := errors.Join(publisher.Close(), b.close(cctx), shutdownTracing(cctx))
	if closeErr != nil {
		log.Error("shutdown_cleanup_failed", zap.Error(closeErr))
	}
	log.Info("shutdown_completed")
	return runErr
}

func seedCatalog(c *cli.Context) error {
	cfg := config.FromContext(c)
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx := logging.ContextWithLogger(c.Context, log)

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = b.close(context.Background()) }()

	if cfg.MongoURI == "" {
		log.Warn("seeding_memory_store_data_is_discarded_on_exit_use_serve_seed")
	}
	// JWT не нужен: используется только хеширование пароля
	creds := auth.NewCredentials(cfg.JWTSecret, cfg.JWTTTL)
	_, err = seed.Run(ctx, service.NewProductService(b.products), b.users, creds, seed.DefaultDemoUser)
	return err
}
