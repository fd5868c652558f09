package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/binlookup"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/validation"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentRequest is the flat wire form of a payment to validate.
type PaymentRequest struct {
	card.Input
	card.Encrypted
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`
}

// toValidation falls back to the client IP for fraud screening.
func (r PaymentRequest) toValidation(clientIP string) validation.Request {
	ip := r.IPAddress
	if ip == "" {
		ip = clientIP
	}
	return validation.Request{
		Card:      r.Input,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Email:     r.Email,
		IPAddress: ip,
		DeviceID:  r.DeviceID,
	}
}

type BatchRequest struct {
	Payments []PaymentRequest `json:"payments"`
}

type DetectCardTypeRequest struct {
	CardNumber string `json:"cardNumber"`
}

type ValidationHandler struct {
	validationService service.ValidationService
	decrypter         CardDecrypter
	exposeDetail      bool
}

func NewValidationHandler(validationService service.ValidationService, decrypter CardDecrypter, exposeDetail bool) *ValidationHandler {
	return &ValidationHandler{
		validationService: validationService,
		decrypter:         decrypter,
		exposeDetail:      exposeDetail,
	}
}

// ValidatePayment godoc
// @Summary Validate a payment
// @Description Run structural checks, BIN lookup and fraud screening on a card payment
// @Tags validation
// @Accept json
// @Produce json
// @Param request body PaymentRequest true "Card and amount"
// @Success 200 {object} validation.Result
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/validate-payment [post]
func (h *ValidationHandler) ValidatePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	if err := decryptCard(h.decrypter, &req.Input, req.Encrypted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	vreq := req.toValidation(c.ClientIP())
	result, err := h.validationService.Validate(c.Request.Context(), &vreq)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ValidateBatch godoc
// @Summary Validate a batch of payments
// @Description Validate up to 50 payments concurrently; results keep input order
// @Tags validation
// @Accept json
// @Produce json
// @Param request body BatchRequest true "Payments"
// @Success 200 {object} validation.BatchResult
// @Failure 400 {object} map[string]string
// @Router /api/validate-batch [post]
func (h *ValidationHandler) ValidateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	reqs := make([]validation.Request, len(req.Payments))
	for i, p := range req.Payments {
		if err := decryptCard(h.decrypter, &p.Input, p.Encrypted); err != nil {
			reqs[i] = validation.Request{InputError: fmt.Sprintf("INVALID_REQUEST: %v", err)}
			continue
		}
		reqs[i] = p.toValidation(c.ClientIP())
	}

	result, err := h.validationService.ValidateBatch(c.Request.Context(), reqs)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// LookupBIN godoc
// @Summary Look up issuer metadata
// @Tags validation
// @Produce json
// @Param bin path string true "At least 6 digits; longer input is cut to 8"
// @Success 200 {object} bin.Record
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/bin-lookup/{bin} [get]
func (h *ValidationHandler) LookupBIN(c *gin.Context) {
	prefix := card.StripNumber(c.Param("bin"))
	if len(prefix) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "BIN must be at least 6 digits"})
		return
	}

	rec, err := h.validationService.LookupBIN(c.Request.Context(), prefix)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rec)
	case errors.Is(err, binlookup.ErrInvalidBIN):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
	case errors.Is(err, binlookup.ErrLookupUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "BIN_LOOKUP_UNAVAILABLE", "message": "BIN information is not available"})
	default:
		h.serviceError(c, err)
	}
}

// DetectCardType godoc
// @Summary Detect card brand
// @Tags validation
// @Accept json
// @Produce json
// @Param request body DetectCardTypeRequest true "Card number"
// @Success 200 {object} card.TypeInfo
// @Failure 400 {object} map[string]string
// @Router /api/detect-card-type [post]
func (h *ValidationHandler) DetectCardType(c *gin.Context) {
	var req DetectCardTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil || card.StripNumber(req.CardNumber) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "cardNumber is required"})
		return
	}

	c.JSON(http.StatusOK, h.validationService.DetectCardType(req.CardNumber))
}

// Stats godoc
// @Summary Validation statistics
// @Tags ops
// @Produce json
// @Success 200 {object} validation.Stats
// @Router /api/stats [get]
func (h *ValidationHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.validationService.Stats())
}

func (h *ValidationHandler) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCardNumberRequired),
		errors.Is(err, service.ErrBatchEmpty),
		errors.Is(err, service.ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "TIMEOUT"})
	default:
		internalError(c, err, h.exposeDetail)
	}
}

// internalError hides err from the response unless exposeDetail is set.
func internalError(c *gin.Context, err error, exposeDetail bool) {
	logger.Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	body := gin.H{"error": "INTERNAL_ERROR"}
	if exposeDetail {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}
