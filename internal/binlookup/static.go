package binlookup

import (
	"sort"
	"strconv"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
)

const staticSource = "static_table"

// Range maps an inclusive span of six-digit BIN prefixes to issuer metadata.
type Range struct {
	Start       int
	End         int
	Brand       string
	Type        string
	Issuer      string
	Country     string
	CountryCode string
	Currency    string
	Prepaid     bool
}

func (r Range) width() int { return r.End - r.Start }

// StaticTable is the last-resort BIN source. The narrowest matching range
// wins, so issuer-specific entries override network-wide ones.
type StaticTable struct {
	ranges []Range
}

func NewStaticTable(ranges []Range) *StaticTable {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].width() < sorted[j].width()
	})
	return &StaticTable{ranges: sorted}
}

// DefaultStaticTable carries well-known issuer BINs and network ranges.
func DefaultStaticTable() *StaticTable {
	return NewStaticTable([]Range{
		{Start: 424242, End: 424242, Brand: "VISA", Type: "credit", Issuer: "Stripe Test Bank", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 400005, End: 400005, Brand: "VISA", Type: "debit", Issuer: "Stripe Test Bank", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 555555, End: 555555, Brand: "MASTERCARD", Type: "credit", Issuer: "Stripe Test Bank", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 520082, End: 520082, Brand: "MASTERCARD", Type: "debit", Issuer: "Stripe Test Bank", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 510510, End: 510510, Brand: "MASTERCARD", Type: "prepaid", Issuer: "Stripe Test Bank", Country: "United States", CountryCode: "US", Currency: "USD", Prepaid: true},
		{Start: 378282, End: 378282, Brand: "AMERICAN_EXPRESS", Type: "credit", Issuer: "American Express", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 601111, End: 601111, Brand: "DISCOVER", Type: "credit", Issuer: "Discover Bank", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 340000, End: 349999, Brand: "AMERICAN_EXPRESS", Type: "credit", Issuer: "American Express"},
		{Start: 370000, End: 379999, Brand: "AMERICAN_EXPRESS", Type: "credit", Issuer: "American Express"},
		{Start: 601100, End: 601199, Brand: "DISCOVER", Type: "credit", Issuer: "Discover Bank", Country: "United States", CountryCode: "US", Currency: "USD"},
		{Start: 622126, End: 622925, Brand: "DISCOVER", Type: "credit"},
		{Start: 644000, End: 659999, Brand: "DISCOVER", Type: "credit"},
		{Start: 352800, End: 358999, Brand: "JCB", Type: "credit", Country: "Japan", CountryCode: "JP", Currency: "JPY"},
		{Start: 300000, End: 305999, Brand: "DINERS_CLUB", Type: "credit"},
		{Start: 620000, End: 629999, Brand: "UNIONPAY", Type: "debit", Country: "China", CountryCode: "CN", Currency: "CNY"},
		{Start: 222100, End: 272099, Brand: "MASTERCARD", Type: "credit"},
		{Start: 510000, End: 559999, Brand: "MASTERCARD", Type: "credit"},
		{Start: 400000, End: 499999, Brand: "VISA", Type: "credit"},
	})
}

// Lookup matches the first six digits of number.
func (t *StaticTable) Lookup(number string) (*bin.Record, bool) {
	if len(number) < 6 {
		return nil, false
	}
	prefix, err := strconv.Atoi(number[:6])
	if err != nil {
		return nil, false
	}

	for _, r := range t.ranges {
		if prefix < r.Start || prefix > r.End {
			continue
		}
		typ := r.Type
		if typ == "" {
			typ = "unknown"
		}
		return &bin.Record{
			BIN:         number,
			Brand:       r.Brand,
			Type:        typ,
			Issuer:      r.Issuer,
			Country:     r.Country,
			CountryCode: r.CountryCode,
			Currency:    r.Currency,
			Prepaid:     r.Prepaid,
			Confidence:  bin.ConfidenceLow,
			Source:      staticSource,
		}, true
	}
	return nil, false
}
