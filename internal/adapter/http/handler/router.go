package handler

import (
	"net/http"

	"clarity-storefront/internal/adapter/http/middleware"
	"clarity-storefront/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MetricsEndpoint observes requests and serves the scrape endpoint.
type MetricsEndpoint interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Tokens         ports.TokenService
	Carts          ports.CartService
	Prices         ports.PriceService
	Checkout       ports.CheckoutService
	Chain          ports.ChainDataService
	Attestations   ports.AttestationService
	Loyalty        ports.LoyaltyService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	Metrics        MetricsEndpoint   // nil = no /metrics
	HealthCheckers []ports.HealthChecker
	Mode           string // gin mode; empty = release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if a limiter is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	sessionHandler := NewSessionHandler(deps.Tokens)
	storefront := NewStorefrontHandler(deps.Carts, deps.Prices)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Chain)
	attestationHandler := NewAttestationHandler(deps.Attestations, deps.Loyalty)

	v1.POST("/sessions", rl("sessions"), sessionHandler.Create)
	v1.GET("/products", rl("read"), storefront.ListProducts)
	v1.GET("/price", rl("read"), storefront.GetPrice)
	v1.GET("/transactions/:tx_hash/onchain", rl("read"), checkoutHandler.Onchain)

	attestations := v1.Group("/attestations")
	{
		attestations.POST("", rl("attestations"), attestationHandler.Create)
		attestations.GET("/template", rl("read"), attestationHandler.Template)
		attestations.GET("/schema", rl("read"), attestationHandler.VerifySchema)
		attestations.POST("/schemas", rl("attestations"), attestationHandler.RegisterSchema)
		attestations.GET("/:id", rl("read"), attestationHandler.Get)
	}
	v1.GET("/buyers/:address/attestations", rl("read"), attestationHandler.ListForBuyer)
	v1.GET("/loyalty/:address", rl("read"), attestationHandler.Loyalty)

	// --- Session-scoped routes ---
	sessionAuth := middleware.SessionAuth(deps.Tokens, deps.Logger)

	cart := v1.Group("/cart", sessionAuth)
	{
		cart.GET("", rl("read"), storefront.GetCart)
		cart.POST("/items", rl("cart"), storefront.AddItem)
		cart.DELETE("/items/:productId", rl("cart"), storefront.RemoveItem)
		cart.DELETE("", rl("cart"), storefront.ClearCart)
	}

	checkout := v1.Group("/checkout", sessionAuth)
	{
		checkout.GET("/quote", rl("read"), checkoutHandler.Quote)
		checkout.GET("/history", rl("read"), checkoutHandler.ListCheckouts)
		checkout.POST("", rl("checkout"), checkoutHandler.Checkout)
		checkout.GET("/:id", rl("read"), checkoutHandler.GetCheckout)
	}

	return r
}
