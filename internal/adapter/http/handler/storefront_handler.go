package handler

import (
	"net/http"
	"strconv"
	"time"

	"clarity-storefront/internal/adapter/http/dto"
	"clarity-storefront/internal/adapter/http/middleware"
	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"
	"clarity-storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StorefrontHandler serves the catalog, the session cart and the displayed price.
type StorefrontHandler struct {
	carts  ports.CartService
	prices ports.PriceService
}

// NewStorefrontHandler creates a new StorefrontHandler.
func NewStorefrontHandler(carts ports.CartService, prices ports.PriceService) *StorefrontHandler {
	return &StorefrontHandler{carts: carts, prices: prices}
}

// ListProducts handles GET /api/v1/products.
func (h *StorefrontHandler) ListProducts(c *gin.Context) {
	response.OK(c, domain.Catalog())
}

// GetCart handles GET /api/v1/cart.
func (h *StorefrontHandler) GetCart(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	cart, err := h.carts.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewCartResponse(cart))
}

// AddItem handles POST /api/v1/cart/items.
func (h *StorefrontHandler) AddItem(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}

	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	cart, err := h.carts.AddItem(c.Request.Context(), sessionID, req.ProductID, quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewCartResponse(cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/:productId.
func (h *StorefrontHandler) RemoveItem(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		response.Error(c, apperror.Validation("productId must be a positive integer"))
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), sessionID, productID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewCartResponse(cart))
}

// ClearCart handles DELETE /api/v1/cart.
func (h *StorefrontHandler) ClearCart(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPrice handles GET /api/v1/price. It serves the ticker's last reading and
// only goes to the oracle before the first one.
func (h *StorefrontHandler) GetPrice(c *gin.Context) {
	quote, ok := h.prices.Latest()
	if !ok {
		price, err := h.prices.CurrentEthUsdPrice(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		quote = ports.PriceQuote{Price: price, UpdatedAt: time.Now().UTC()}
	}
	response.OK(c, dto.PriceResponse{EthUsd: quote.Price.StringFixed(2), UpdatedAt: quote.UpdatedAt})
}

// requireSession reads the session set by SessionAuth and writes a 401 when absent.
func requireSession(c *gin.Context) (uuid.UUID, bool) {
	sessionID, ok := middleware.SessionID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return sessionID, true
}
