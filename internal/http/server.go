package httpapi

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/service"
)

//go:embed templates/*.html
var pagesFS embed.FS

// Services сервисный слой, который обслуживает HTTP
type Services struct {
	Products  *service.ProductService
	Carts     *service.CartService
	Wishlists *service.WishlistService
	Auth      *service.AuthService
	Users     *service.UserService
	Orders    *service.OrderService
}

type Options struct {
	ServiceName string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Tokens      TokenParser
}

type Server struct {
	engine *gin.Engine
	svc    Services
	opts   Options
}

func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "storefront"
	}
	registerValidators()

	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.ParseFS(pagesFS, "templates/*.html")))
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(opts.ServiceName),
		requestLogger(opts.Logger),
		observe(opts.Metrics),
	)
	s := &Server{engine: r, svc: svc, opts: opts}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))

	authed := requireAuth(s.opts.Tokens)
	v1 := s.engine.Group("/api/v1")
	{
		a := v1.Group("/auth")
		a.POST("/signup", s.signUp)
		a.POST("/verify-email", s.verifyEmail)
		a.POST("/login", s.login)

		users := v1.Group("/users", authed)
		users.GET("/profile", s.getProfile)
		users.PUT("/profile", s.updateProfile)
		users.DELETE("/profile", s.deleteProfile)

		products := v1.Group("/products")
		products.GET("", s.listProducts)
		products.GET("/:id", s.getProduct)
		products.POST("", authed, s.createProduct)
		products.PUT("/:id", authed, s.updateProduct)
		products.DELETE("/:id", authed, s.deleteProduct)

		cart := v1.Group("/cart", authed)
		cart.GET("", s.getCart)
		cart.POST("", s.addToCart)
		cart.PUT("/:productId/:size/:color", s.updateCartItem)
		cart.DELETE("/:productId/:size/:color", s.removeCartItem)
		cart.DELETE("", s.clearCart)

		wishlist := v1.Group("/wishlist", authed)
		wishlist.GET("", s.getWishlist)
		wishlist.POST("", s.addToWishlist)
		wishlist.DELETE("/:productId", s.removeFromWishlist)
		wishlist.DELETE("", s.clearWishlist)

		// ссылка из письма открывается без токена доступа
		v1.GET("/orders/confirm", s.confirmOrder)
		orders := v1.Group("/orders", authed)
		orders.POST("", s.createOrder)
		orders.GET("", s.orderHistory)
		orders.GET("/:orderId", s.getOrder)
		orders.PATCH("/:orderId/cancel", s.cancelOrder)
	}
}
