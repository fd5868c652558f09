package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Scopes granted to API callers
const (
	ScopeValidate  = "payments:validate"
	ScopeAuthorize = "payments:authorize"
	ScopeRefund    = "payments:refund"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify an API caller. The subject is the caller id used for
// per-caller rate limiting.
type Claims struct {
	CallerID string   `json:"caller_id"`
	Scopes   []string `json:"scopes"`
	jwtv5.RegisteredClaims
}

func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

type JWTService struct {
	secretKey []byte
	expiry    time.Duration
	issuer    string
}

func NewJWTService(secretKey string, expiryHours int) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		expiry:    time.Hour * time.Duration(expiryHours),
		issuer:    "payrisk",
	}
}

// GenerateToken creates a signed caller token
func (s *JWTService) GenerateToken(callerID string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := &Claims{
		CallerID: callerID,
		Scopes:   scopes,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   callerID,
			Issuer:    s.issuer,
			ExpiresAt: jwtv5.NewNumericDate(expiresAt),
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates and parses a caller token
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(token *jwtv5.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwtv5.WithIssuer(s.issuer))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CallerID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
