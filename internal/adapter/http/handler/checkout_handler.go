package handler

import (
	"strconv"

	"clarity-storefront/internal/adapter/http/dto"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"
	"clarity-storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultHistoryLimit = 10

// CheckoutHandler runs checkouts and shows their results.
type CheckoutHandler struct {
	checkout ports.CheckoutService
	chain    ports.ChainDataService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout ports.CheckoutService, chain ports.ChainDataService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, chain: chain}
}

// Quote handles GET /api/v1/checkout/quote.
func (h *CheckoutHandler) Quote(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	quote, err := h.checkout.Quote(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewQuoteResponse(quote))
}

// Checkout handles POST /api/v1/checkout. It blocks until the run ends.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	session, err := h.checkout.Checkout(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// GetCheckout handles GET /api/v1/checkout/:id.
func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	checkoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid checkout ID"))
		return
	}
	session, err := h.checkout.GetCheckout(c.Request.Context(), sessionID, checkoutID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// ListCheckouts handles GET /api/v1/checkout/history?limit=N.
func (h *CheckoutHandler) ListCheckouts(c *gin.Context) {
	sessionID, ok := requireSession(c)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	sessions, err := h.checkout.ListCheckouts(c.Request.Context(), sessionID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessions)
}

// Onchain handles GET /api/v1/transactions/:tx_hash/onchain.
func (h *CheckoutHandler) Onchain(c *gin.Context) {
	receipt, err := h.chain.Fetch(c.Request.Context(), c.Param("tx_hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, receipt)
}
