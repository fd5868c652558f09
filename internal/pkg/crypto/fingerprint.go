package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var ErrKeyTooLong = errors.New("fingerprint key must be at most 64 bytes")

// Fingerprinter derives stable, non-reversible identifiers from card data.
// Identical inputs map to the same fingerprint for a given key; the key
// keeps fingerprints from being brute-forced over the small PAN space.
type Fingerprinter struct {
	key []byte
}

func NewFingerprinter(key string) (*Fingerprinter, error) {
	if len(key) > blake2b.Size {
		return nil, ErrKeyTooLong
	}
	return &Fingerprinter{key: []byte(key)}, nil
}

// Fingerprint hashes the parts with a separator that cannot occur in card
// data, so ("12","3") and ("1","23") never collide.
func (f *Fingerprinter) Fingerprint(parts ...string) string {
	h, err := blake2b.New256(f.key)
	if err != nil {
		// key length is checked in NewFingerprinter
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// MaskCardNumber masks card number for display (shows last 4 digits)
func MaskCardNumber(cardNumber string) string {
	if len(cardNumber) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(cardNumber)-4) + cardNumber[len(cardNumber)-4:]
}
