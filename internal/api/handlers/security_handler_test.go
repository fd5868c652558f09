package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/authorization"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/validation"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockSecurityService is a mock implementation of service.SecurityService
type MockSecurityService struct {
	mock.Mock
}

func (m *MockSecurityService) PublicKeyPEM() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSecurityService) Decrypt(encryptedBase64 string) (string, error) {
	args := m.Called(encryptedBase64)
	return args.String(0), args.Error(1)
}

func (m *MockSecurityService) DecryptCard(in *card.Input, enc card.Encrypted) error {
	args := m.Called(in, enc)
	if number := args.String(0); number != "" {
		in.CardNumber = number
	}
	return args.Error(1)
}

func setupSecurityRouter(svc service.SecurityService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/public-key", NewSecurityHandler(svc).GetPublicKey)
	return router
}

// ==================== GetPublicKey Tests ====================

func TestSecurityHandler_GetPublicKey_Success(t *testing.T) {
	mockService := new(MockSecurityService)
	router := setupSecurityRouter(mockService)

	mockService.On("PublicKeyPEM").Return("-----BEGIN PUBLIC KEY-----\nMIIB\n-----END PUBLIC KEY-----\n")

	w := get(router, "/api/public-key")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BEGIN PUBLIC KEY")
	assert.Contains(t, w.Body.String(), "RSA-OAEP-256")
}

func TestSecurityHandler_GetPublicKey_Empty(t *testing.T) {
	mockService := new(MockSecurityService)
	router := setupSecurityRouter(mockService)

	mockService.On("PublicKeyPEM").Return("")

	w := get(router, "/api/public-key")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ==================== Encrypted Card Fields ====================

func TestValidationHandler_ValidatePayment_EncryptedCard(t *testing.T) {
	validationService := new(MockValidationService)
	securityService := new(MockSecurityService)

	router := gin.New()
	router.POST("/api/validate-payment", NewValidationHandler(validationService, securityService, false).ValidatePayment)

	securityService.On("DecryptCard", mock.Anything, card.Encrypted{EncryptedNumber: "ciphertext"}).
		Return("4111111111111111", nil)
	validationService.On("Validate", mock.Anything, mock.MatchedBy(func(r *validation.Request) bool {
		return r.Card.CardNumber == "4111111111111111"
	})).Return(&validation.Result{Success: true}, nil)

	w := postJSON(router, "/api/validate-payment", map[string]any{
		"encryptedCardNumber": "ciphertext",
		"amount":              10,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	securityService.AssertExpectations(t)
	validationService.AssertExpectations(t)
}

func TestValidationHandler_ValidatePayment_DecryptionFails(t *testing.T) {
	validationService := new(MockValidationService)
	securityService := new(MockSecurityService)

	router := gin.New()
	router.POST("/api/validate-payment", NewValidationHandler(validationService, securityService, false).ValidatePayment)

	securityService.On("DecryptCard", mock.Anything, mock.Anything).Return("", service.ErrDecryptionFailed)

	w := postJSON(router, "/api/validate-payment", map[string]any{"encryptedCardNumber": "garbage"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "could not be decrypted")
	validationService.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestValidationHandler_ValidateBatch_DecryptionFailureStaysOnItem(t *testing.T) {
	validationService := new(MockValidationService)
	securityService := new(MockSecurityService)

	router := gin.New()
	router.POST("/api/validate-batch", NewValidationHandler(validationService, securityService, false).ValidateBatch)

	securityService.On("DecryptCard", mock.Anything, mock.Anything).Return("", service.ErrDecryptionFailed)
	validationService.On("ValidateBatch", mock.Anything, mock.MatchedBy(func(reqs []validation.Request) bool {
		return len(reqs) == 2 &&
			reqs[0].Card.CardNumber == "4111111111111111" && reqs[0].InputError == "" &&
			strings.HasPrefix(reqs[1].InputError, "INVALID_REQUEST: ")
	})).Return(&validation.BatchResult{
		TotalProcessed: 2,
		Results: []validation.BatchItem{
			{Index: 0, Result: &validation.Result{Success: true}},
			{Index: 1, Error: "INVALID_REQUEST: card number: card data could not be decrypted"},
		},
		Summary: validation.BatchSummary{Successful: 1, Errors: 1},
	}, nil)

	w := postJSON(router, "/api/validate-batch", map[string]any{
		"payments": []map[string]any{
			{"cardNumber": "4111111111111111"},
			{"encryptedCardNumber": "garbage"},
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"index":1`)
	assert.Contains(t, w.Body.String(), "could not be decrypted")
	validationService.AssertExpectations(t)
}

func TestAuthorizationHandler_AuthorizeCard_EncryptedWithoutKey(t *testing.T) {
	mockService := new(MockAuthorizationService)
	router := setupAuthorizationRouter(mockService, false)

	w := postJSON(router, "/api/authorize-card", map[string]any{"encryptedCardNumber": "ciphertext"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not accepted")
	mockService.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestAuthorizationHandler_AuthorizeCard_EncryptedCard(t *testing.T) {
	authService := new(MockAuthorizationService)
	securityService := new(MockSecurityService)

	router := gin.New()
	router.POST("/api/authorize-card", NewAuthorizationHandler(authService, securityService, false).AuthorizeCard)

	securityService.On("DecryptCard", mock.Anything, mock.Anything).Return("4242424242424242", nil)
	authService.On("Authorize", mock.Anything, mock.MatchedBy(func(r *authorization.Request) bool {
		return r.Card.CardNumber == "4242424242424242"
	})).Return(&authorization.Result{Status: authorization.StatusSucceeded}, nil)

	w := postJSON(router, "/api/authorize-card", map[string]any{"encryptedCardNumber": "ciphertext"})

	assert.Equal(t, http.StatusOK, w.Code)
	authService.AssertExpectations(t)
}
