package handlers

import (
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/authorization"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/gateway"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var last4Pattern = regexp.MustCompile(`^\d{4}$`)

// AuthorizeRequest is the flat wire form of a card to authorize.
type AuthorizeRequest struct {
	card.Input
	card.Encrypted
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

type RefundRequest struct {
	AuthID string `json:"authId"`
}

type AuthorizationHandler struct {
	authService  service.AuthorizationService
	decrypter    CardDecrypter
	exposeDetail bool
}

func NewAuthorizationHandler(authService service.AuthorizationService, decrypter CardDecrypter, exposeDetail bool) *AuthorizationHandler {
	return &AuthorizationHandler{
		authService:  authService,
		decrypter:    decrypter,
		exposeDetail: exposeDetail,
	}
}

// AuthorizeCard godoc
// @Summary Authorize a card
// @Description Verify a card with a small live charge that is refunded automatically
// @Tags authorization
// @Accept json
// @Produce json
// @Param request body AuthorizeRequest true "Card details"
// @Success 200 {object} authorization.Result
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/authorize-card [post]
func (h *AuthorizationHandler) AuthorizeCard(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	if err := decryptCard(h.decrypter, &req.Input, req.Encrypted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	result, err := h.authService.Authorize(c.Request.Context(), &authorization.Request{
		Card:        req.Input,
		Email:       req.Email,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.processorError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAuthorization godoc
// @Summary Get a recent authorization
// @Tags authorization
// @Produce json
// @Param authId path string true "Authorization ID"
// @Param last4 query string true "Last four digits of the card"
// @Success 200 {object} authorization.Result
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/authorization/{authId} [get]
func (h *AuthorizationHandler) GetAuthorization(c *gin.Context) {
	authID, err := uuid.Parse(c.Param("authId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "invalid authorization id"})
		return
	}
	last4 := c.Query("last4")
	if !last4Pattern.MatchString(last4) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "last4 must be 4 digits"})
		return
	}

	result, err := h.authService.GetAuthorization(c.Request.Context(), authID, last4)
	if errors.Is(err, service.ErrAuthorizationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": err.Error()})
		return
	}
	if err != nil {
		internalError(c, err, h.exposeDetail)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Refund godoc
// @Summary Refund a charge
// @Description Fully refund a charge; repeated calls never refund twice
// @Tags authorization
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chargeId path string true "Charge ID"
// @Param request body RefundRequest false "Originating authorization"
// @Success 200 {object} authorization.RefundResult
// @Failure 409 {object} map[string]string
// @Router /api/refund/{chargeId} [post]
func (h *AuthorizationHandler) Refund(c *gin.Context) {
	// the body is optional
	var req RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
			return
		}
	}

	chargeID := c.Param("chargeId")
	result, err := h.authService.Refund(c.Request.Context(), chargeID, req.AuthID)
	if errors.Is(err, service.ErrAlreadyRefunded) {
		c.JSON(http.StatusConflict, gin.H{
			"error":           "ALREADY_REFUNDED",
			"chargeId":        chargeID,
			"alreadyRefunded": true,
		})
		return
	}
	if err != nil {
		h.processorError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefundStatus godoc
// @Summary Refund status of a charge
// @Tags authorization
// @Produce json
// @Param chargeId path string true "Charge ID"
// @Success 200 {object} authorization.RefundStatus
// @Router /api/refund-status/{chargeId} [get]
func (h *AuthorizationHandler) RefundStatus(c *gin.Context) {
	status, err := h.authService.RefundStatus(c.Request.Context(), c.Param("chargeId"))
	if err != nil {
		h.processorError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Stats godoc
// @Summary Authorization statistics
// @Tags ops
// @Produce json
// @Success 200 {object} authorization.Stats
// @Router /api/authorization-stats [get]
func (h *AuthorizationHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.authService.Stats())
}

func (h *AuthorizationHandler) processorError(c *gin.Context, err error) {
	var perr *gateway.Error
	switch {
	case errors.Is(err, service.ErrCardDataRequired), errors.Is(err, service.ErrChargeIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
	case errors.Is(err, gateway.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "PROCESSOR_NOT_CONFIGURED"})
	case errors.Is(err, gateway.ErrProcessorUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "PROCESSOR_UNAVAILABLE"})
	case errors.As(err, &perr):
		status := http.StatusBadRequest
		if perr.HTTPStatus == http.StatusNotFound {
			status = http.StatusNotFound
		}
		body := gin.H{"error": "PROCESSOR_ERROR", "code": perr.Code}
		if h.exposeDetail {
			body["detail"] = perr.Message
		}
		c.JSON(status, body)
	default:
		internalError(c, err, h.exposeDetail)
	}
}
