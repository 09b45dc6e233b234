// Package gateway exposes the marketplace over HTTP for the web and mobile
// front ends. Both consume the same cart and order rules; the gateway only
// translates requests and renders typed errors.
package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/farmmarket/pkg/cart"
	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/identity"
	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/order"
	"github.com/example/farmmarket/pkg/repository"
	"github.com/example/farmmarket/pkg/store"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const sessionKey = "session"

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	identity identity.Provider
	store    store.RecordStore
	carts    cart.Store
	orders   *order.Manager
	audit    *repository.MongoRepository // optional, enables the order event endpoint
}

func NewGateway(cfg *config.Config, logger *zap.Logger, provider identity.Provider,
	recordStore store.RecordStore, cartStore cart.Store, orders *order.Manager,
	audit *repository.MongoRepository) *Gateway {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		identity: provider,
		store:    recordStore,
		carts:    cartStore,
		orders:   orders,
		audit:    audit,
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", g.signUp)
			auth.POST("/signin", g.signIn)
			auth.POST("/signout", g.authenticated(), g.signOut)
			auth.GET("/me", g.authenticated(), g.currentUser)
		}

		v1.PUT("/profile", g.authenticated(), g.updateProfile)

		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
			products.POST("", g.authenticated(), g.createProduct)
			products.PUT("/:id", g.authenticated(), g.updateProduct)
			products.DELETE("/:id", g.authenticated(), g.deleteProduct)
		}

		cartRoutes := v1.Group("/cart", g.authenticated())
		{
			cartRoutes.GET("", g.getCart)
			cartRoutes.POST("/items", g.addCartItem)
			cartRoutes.PUT("/items/:productId", g.updateCartItem)
			cartRoutes.DELETE("/items/:productId", g.removeCartItem)
			cartRoutes.DELETE("", g.clearCart)
		}

		orders := v1.Group("/orders", g.authenticated())
		{
			orders.POST("", g.checkout)
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/status", g.updateOrderStatus)
			if g.audit != nil {
				orders.GET("/:id/events", g.getOrderEvents)
			}
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	g.logger.Info("Gateway starting", zap.String("address", addr))
	return g.router.Run(addr)
}

// Router exposes the underlying engine for tests.
func (g *Gateway) Router() *gin.Engine {
	return g.router
}

// authenticated resolves the bearer token into a session and aborts with
// 401 when it cannot.
func (g *Gateway) authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		profile, err := g.identity.CurrentUser(c.Request.Context(), token)
		if err != nil {
			if models.IsBackendUnavailable(err) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider unavailable"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}

		c.Set(sessionKey, models.Session{UserID: profile.ID, Role: profile.Role})
		c.Set("token", token)
		c.Next()
	}
}

func (g *Gateway) session(c *gin.Context) models.Session {
	v, _ := c.Get(sessionKey)
	session, _ := v.(models.Session)
	return session
}

func (g *Gateway) cartEngine(c *gin.Context) *cart.Engine {
	return cart.NewEngine(c.Request.Context(), g.session(c), g.carts, g.logger)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
