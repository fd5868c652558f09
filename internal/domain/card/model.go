package card

import (
	"strings"
	"unicode"
)

type Brand string

const (
	BrandVisa            Brand = "VISA"
	BrandMastercard      Brand = "MASTERCARD"
	BrandAmericanExpress Brand = "AMERICAN_EXPRESS"
	BrandDiscover        Brand = "DISCOVER"
	BrandJCB             Brand = "JCB"
	BrandDinersClub      Brand = "DINERS_CLUB"
	BrandMaestro         Brand = "MAESTRO"
	BrandUnionPay        Brand = "UNIONPAY"
	BrandUnknown         Brand = "UNKNOWN"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Input is the raw card data submitted for validation or authorization.
// It is never persisted and never logged beyond the last four digits.
type Input struct {
	CardNumber     string         `json:"cardNumber"`
	ExpiryMonth    int            `json:"expiryMonth"`
	ExpiryYear     int            `json:"expiryYear"`
	CVV            string         `json:"cvv"`
	HolderName     string         `json:"holderName"`
	BillingAddress *Address       `json:"billingAddress,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Encrypted carries card fields encrypted client-side with the service's
// public key (RSA-OAEP, SHA-256, base64).
type Encrypted struct {
	EncryptedNumber string `json:"encryptedCardNumber,omitempty"`
	EncryptedCVV    string `json:"encryptedCvv,omitempty"`
}

func (e Encrypted) Empty() bool {
	return e.EncryptedNumber == "" && e.EncryptedCVV == ""
}

// Normalize strips whitespace and dashes from the card number in place.
func (in *Input) Normalize() {
	in.CardNumber = StripNumber(in.CardNumber)
	in.CVV = strings.TrimSpace(in.CVV)
	in.HolderName = strings.TrimSpace(in.HolderName)
}

func (in *Input) Last4() string {
	return Last4(in.CardNumber)
}

// StripNumber removes whitespace and dashes from a card number.
func StripNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, number)
}

func Last4(number string) string {
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

// TypeInfo describes what the brand table knows about a number.
type TypeInfo struct {
	Brand       Brand  `json:"brand"`
	DisplayName string `json:"type"`
	Lengths     []int  `json:"lengths"`
	CVVLength   int    `json:"cvvLength"`
	Supported   bool   `json:"supported"`
}

// CheckResult is the outcome of one structural check.
type CheckResult struct {
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Checks holds every structural check. All checks run; none short-circuit.
type Checks struct {
	Format         CheckResult `json:"format"`
	Luhn           CheckResult `json:"luhn"`
	Expiry         CheckResult `json:"expiry"`
	CVV            CheckResult `json:"cvv"`
	HolderName     CheckResult `json:"holderName"`
	Amount         CheckResult `json:"amount"`
	BillingAddress CheckResult `json:"billingAddress"`
}

// StructurallyValid is true when format, Luhn, expiry and amount all pass.
func (c Checks) StructurallyValid() bool {
	return c.Format.Valid && c.Luhn.Valid && c.Expiry.Valid && c.Amount.Valid
}

// EarlyFail is true when the number itself is unusable and no external
// provider should be consulted.
func (c Checks) EarlyFail() bool {
	return !c.Format.Valid || !c.Luhn.Valid
}
