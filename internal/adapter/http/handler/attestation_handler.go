package handler

import (
	"time"

	"clarity-storefront/internal/adapter/http/dto"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"
	"clarity-storefront/pkg/response"

	"github.com/gin-gonic/gin"
)

// AttestationHandler exposes the loyalty attestation reader and writer.
type AttestationHandler struct {
	attestations ports.AttestationService
	loyalty      ports.LoyaltyService
	now          func() time.Time
}

// NewAttestationHandler creates a new AttestationHandler.
func NewAttestationHandler(attestations ports.AttestationService, loyalty ports.LoyaltyService) *AttestationHandler {
	return &AttestationHandler{attestations: attestations, loyalty: loyalty, now: time.Now}
}

// Create handles POST /api/v1/attestations.
func (h *AttestationHandler) Create(c *gin.Context) {
	var req dto.CreateAttestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	id, err := h.attestations.Create(c.Request.Context(), req.ToDomain(h.now()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreateAttestationResponse{AttestationID: id})
}

// Template handles GET /api/v1/attestations/template.
func (h *AttestationHandler) Template(c *gin.Context) {
	data, err := h.attestations.Template(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, data)
}

// VerifySchema handles GET /api/v1/attestations/schema.
func (h *AttestationHandler) VerifySchema(c *gin.Context) {
	status, err := h.attestations.VerifySchema(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SchemaStatusResponse{Schema: status.Schema, Matches: status.Matches})
}

// RegisterSchema handles POST /api/v1/attestations/schemas.
func (h *AttestationHandler) RegisterSchema(c *gin.Context) {
	var req dto.RegisterSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	id, err := h.attestations.RegisterSchema(c.Request.Context(), req.ToDomain())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.RegisterSchemaResponse{SchemaID: id})
}

// Get handles GET /api/v1/attestations/:id.
func (h *AttestationHandler) Get(c *gin.Context) {
	record, err := h.attestations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// ListForBuyer handles GET /api/v1/buyers/:address/attestations.
func (h *AttestationHandler) ListForBuyer(c *gin.Context) {
	history, err := h.attestations.ListForBuyer(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBuyerAttestationsResponse(history))
}

// Loyalty handles GET /api/v1/loyalty/:address.
func (h *AttestationHandler) Loyalty(c *gin.Context) {
	summary, err := h.loyalty.Summary(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
