package handlers

import (
	"errors"
	"net/http"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

var errEncryptionDisabled = errors.New("encrypted card fields are not accepted")

// CardDecrypter is satisfied by service.SecurityService.
type CardDecrypter interface {
	DecryptCard(in *card.Input, enc card.Encrypted) error
}

func decryptCard(d CardDecrypter, in *card.Input, enc card.Encrypted) error {
	if enc.Empty() {
		return nil
	}
	if d == nil {
		return errEncryptionDisabled
	}
	return d.DecryptCard(in, enc)
}

type SecurityHandler struct {
	securityService service.SecurityService
}

func NewSecurityHandler(securityService service.SecurityService) *SecurityHandler {
	return &SecurityHandler{
		securityService: securityService,
	}
}

// GetPublicKey godoc
// @Summary Get card encryption key
// @Description RSA public key for encrypting encryptedCardNumber and encryptedCvv client-side
// @Tags security
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/public-key [get]
func (h *SecurityHandler) GetPublicKey(c *gin.Context) {
	pem := h.securityService.PublicKeyPEM()
	if pem == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve public key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publicKey": pem,
		"algorithm": "RSA-OAEP-256",
		"encoding":  "base64",
	})
}
