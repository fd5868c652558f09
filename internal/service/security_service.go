package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
)

var (
	ErrDecryptionFailed = errors.New("card data could not be decrypted")
	ErrInvalidKey       = errors.New("invalid card encryption key")
)

// SecurityService decrypts card fields that clients encrypt with the
// published public key.
type SecurityService interface {
	PublicKeyPEM() string
	Decrypt(encryptedBase64 string) (string, error)
	DecryptCard(in *card.Input, enc card.Encrypted) error
}

type securityService struct {
	privateKey   *rsa.PrivateKey
	publicKeyPEM string
}

// NewSecurityService loads a PEM private key (PKCS#1 or PKCS#8). An empty
// key generates an ephemeral 2048-bit pair that changes on every restart.
func NewSecurityService(privateKeyPEM string) (SecurityService, error) {
	var (
		key *rsa.PrivateKey
		err error
	)
	if privateKeyPEM == "" {
		logger.Warn("CARD_ENCRYPTION_PRIVATE_KEY not set, generating ephemeral key pair")
		key, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
	} else {
		key, err = parsePrivateKey(privateKeyPEM)
		if err != nil {
			return nil, err
		}
	}

	pubASN1, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	return &securityService{
		privateKey: key,
		publicKeyPEM: string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubASN1,
		})),
	}, nil
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
	}
	return key, nil
}

func (s *securityService) PublicKeyPEM() string {
	return s.publicKeyPEM
}

// Decrypt reverses RSA-OAEP with SHA-256, the scheme WebCrypto uses.
func (s *securityService) Decrypt(encryptedBase64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedBase64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", ErrDecryptionFailed)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, s.privateKey, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// DecryptCard replaces the plain fields of in with any encrypted ones.
func (s *securityService) DecryptCard(in *card.Input, enc card.Encrypted) error {
	if enc.EncryptedNumber != "" {
		number, err := s.Decrypt(enc.EncryptedNumber)
		if err != nil {
			return fmt.Errorf("card number: %w", err)
		}
		in.CardNumber = number
	}
	if enc.EncryptedCVV != "" {
		cvv, err := s.Decrypt(enc.EncryptedCVV)
		if err != nil {
			return fmt.Errorf("cvv: %w", err)
		}
		in.CVV = cvv
	}
	return nil
}
