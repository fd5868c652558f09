package card

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	CodeFormatInvalid       = "FORMAT_INVALID"
	CodeLuhnFailed          = "LUHN_FAILED"
	CodeExpiryInvalidMonth  = "EXPIRY_INVALID_MONTH"
	CodeCardExpired         = "CARD_EXPIRED"
	CodeExpiryTooFar        = "EXPIRY_TOO_FAR"
	CodeCVVInvalid          = "CVV_INVALID"
	CodeNameInvalid         = "NAME_INVALID"
	CodeNameNeedsFullName   = "NAME_NEEDS_FULL_NAME"
	CodeAmountInvalid       = "AMOUNT_INVALID"
	CodeCurrencyUnsupported = "CURRENCY_UNSUPPORTED"
	CodeAddressIncomplete   = "ADDRESS_INCOMPLETE"
)

// MaxExpiryYears bounds how far in the future an expiry may be.
const MaxExpiryYears = 10

var (
	numberPattern = regexp.MustCompile(`^\d{13,19}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
	namePattern   = regexp.MustCompile(`^[\p{L}\s\-'.]+$`)

	maxAmount = decimal.RequireFromString("999999.99")
)

// SupportedCurrencies are the ISO 4217 codes accepted for validation amounts.
var SupportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CAD": {}, "AUD": {}, "JPY": {},
	"CHF": {}, "CNY": {}, "INR": {}, "BRL": {}, "MXN": {}, "SGD": {},
	"HKD": {}, "NZD": {}, "SEK": {}, "NOK": {}, "DKK": {}, "PLN": {},
	"ZAR": {}, "AED": {}, "IDR": {},
}

func ValidateNumber(number string) CheckResult {
	if !numberPattern.MatchString(number) {
		return CheckResult{Code: CodeFormatInvalid, Message: "Card number must be 13-19 digits"}
	}
	return CheckResult{Valid: true, Message: "Card number format is valid"}
}

// Luhn reports whether the digit string passes the mod-10 checksum.
func Luhn(number string) bool {
	if number == "" || !digitsPattern.MatchString(number) {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func ValidateLuhn(number string) CheckResult {
	if !Luhn(number) {
		return CheckResult{Code: CodeLuhnFailed, Message: "Card number failed checksum validation"}
	}
	return CheckResult{Valid: true, Message: "Card number checksum is valid"}
}

// ValidateExpiry accepts two-digit years as 20YY. A card is valid through
// the last day of its expiry month.
func ValidateExpiry(month, year int, now time.Time) CheckResult {
	if month < 1 || month > 12 {
		return CheckResult{Code: CodeExpiryInvalidMonth, Message: "Expiry month must be between 1 and 12"}
	}
	if year < 100 {
		year += 2000
	}

	curYear, curMonth := now.Year(), int(now.Month())
	if year < curYear || (year == curYear && month < curMonth) {
		return CheckResult{Code: CodeCardExpired, Message: "Card has expired"}
	}
	if year > curYear+MaxExpiryYears || (year == curYear+MaxExpiryYears && month > curMonth) {
		return CheckResult{Code: CodeExpiryTooFar, Message: "Expiry date is too far in the future"}
	}
	return CheckResult{Valid: true, Message: "Expiry date is valid"}
}

func ValidateCVV(cvv string, brand Brand) CheckResult {
	want := CVVLength(brand)
	if len(cvv) != want || !digitsPattern.MatchString(cvv) {
		msg := "CVV must be 3 digits"
		if want == 4 {
			msg = "CVV must be 4 digits for American Express"
		}
		return CheckResult{Code: CodeCVVInvalid, Message: msg}
	}
	return CheckResult{Valid: true, Message: "CVV format is valid"}
}

// ValidateHolderName flags a single-token name with its own soft code so the
// caller can ask for a full name instead of rejecting.
func ValidateHolderName(name string) CheckResult {
	name = strings.TrimSpace(name)
	n := len([]rune(name))
	if n < 2 || n > 50 || !namePattern.MatchString(name) || !strings.ContainsFunc(name, unicode.IsLetter) {
		return CheckResult{Code: CodeNameInvalid, Message: "Cardholder name must be 2-50 letters"}
	}
	if len(strings.Fields(name)) < 2 {
		return CheckResult{Code: CodeNameNeedsFullName, Message: "Please provide first and last name"}
	}
	return CheckResult{Valid: true, Message: "Cardholder name is valid"}
}

func ValidateAmount(amount decimal.Decimal, currency string) CheckResult {
	if !amount.IsPositive() {
		return CheckResult{Code: CodeAmountInvalid, Message: "Amount must be greater than zero"}
	}
	if amount.GreaterThan(maxAmount) {
		return CheckResult{Code: CodeAmountInvalid, Message: "Amount exceeds maximum of 999,999.99"}
	}
	if !amount.Equal(amount.Round(2)) {
		return CheckResult{Code: CodeAmountInvalid, Message: "Amount may have at most 2 decimal places"}
	}
	if _, ok := SupportedCurrencies[strings.ToUpper(currency)]; !ok {
		return CheckResult{Code: CodeCurrencyUnsupported, Message: "Currency is not supported"}
	}
	return CheckResult{Valid: true, Message: "Amount is valid"}
}

// ValidateBillingAddress passes a nil address as skipped; a supplied
// address needs line1, city, postal code and country.
func ValidateBillingAddress(addr *Address) CheckResult {
	if addr == nil {
		return CheckResult{Valid: true, Skipped: true, Message: "Billing address not provided"}
	}
	var missing []string
	if strings.TrimSpace(addr.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if strings.TrimSpace(addr.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return CheckResult{Code: CodeAddressIncomplete, Message: "Billing address missing: " + strings.Join(missing, ", ")}
	}
	return CheckResult{Valid: true, Message: "Billing address is complete"}
}

// Validate runs every structural check on a normalized input.
func Validate(in *Input, amount decimal.Decimal, currency string, now time.Time) Checks {
	brand := DetectBrand(in.CardNumber)
	return Checks{
		Format:         ValidateNumber(in.CardNumber),
		Luhn:           ValidateLuhn(in.CardNumber),
		Expiry:         ValidateExpiry(in.ExpiryMonth, in.ExpiryYear, now),
		CVV:            ValidateCVV(in.CVV, brand),
		HolderName:     ValidateHolderName(in.HolderName),
		Amount:         ValidateAmount(amount, currency),
		BillingAddress: ValidateBillingAddress(in.BillingAddress),
	}
}
