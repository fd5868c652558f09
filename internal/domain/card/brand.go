package card

import "strconv"

type brandRange struct {
	brand     Brand
	prefixLen int
	start     int
	end       int
}

type brandSpec struct {
	display   string
	lengths   []int
	cvvLength int
}

var brandSpecs = map[Brand]brandSpec{
	BrandVisa:            {"Visa", []int{13, 16, 19}, 3},
	BrandMastercard:      {"Mastercard", []int{16}, 3},
	BrandAmericanExpress: {"American Express", []int{15}, 4},
	BrandDiscover:        {"Discover", []int{16, 17, 18, 19}, 3},
	BrandJCB:             {"JCB", []int{16, 17, 18, 19}, 3},
	BrandDinersClub:      {"Diners Club", []int{14, 15, 16, 17, 18, 19}, 3},
	BrandMaestro:         {"Maestro", []int{12, 13, 14, 15, 16, 17, 18, 19}, 3},
	BrandUnionPay:        {"UnionPay", []int{16, 17, 18, 19}, 3},
}

// brandRanges is checked in order; the first match wins. More specific
// prefixes must precede the broader ones they overlap (622126-622925 is
// Discover, the rest of 62 is UnionPay).
var brandRanges = []brandRange{
	{BrandAmericanExpress, 2, 34, 34},
	{BrandAmericanExpress, 2, 37, 37},
	{BrandDinersClub, 3, 300, 305},
	{BrandDinersClub, 2, 36, 36},
	{BrandDinersClub, 2, 38, 39},
	{BrandJCB, 4, 3528, 3589},
	{BrandDiscover, 4, 6011, 6011},
	{BrandDiscover, 6, 622126, 622925},
	{BrandDiscover, 3, 644, 649},
	{BrandDiscover, 2, 65, 65},
	{BrandUnionPay, 2, 62, 62},
	{BrandMaestro, 4, 5018, 5018},
	{BrandMaestro, 4, 5020, 5020},
	{BrandMaestro, 4, 5038, 5038},
	{BrandMaestro, 4, 5893, 5893},
	{BrandMaestro, 4, 6304, 6304},
	{BrandMaestro, 4, 6759, 6759},
	{BrandMaestro, 4, 6761, 6763},
	{BrandMastercard, 2, 51, 55},
	{BrandMastercard, 4, 2221, 2720},
	{BrandVisa, 1, 4, 4},
}

// DetectBrand maps a (stripped) card number onto the brand table.
func DetectBrand(number string) Brand {
	number = StripNumber(number)
	for _, r := range brandRanges {
		if len(number) < r.prefixLen {
			continue
		}
		prefix, err := strconv.Atoi(number[:r.prefixLen])
		if err != nil {
			return BrandUnknown
		}
		if prefix >= r.start && prefix <= r.end {
			return r.brand
		}
	}
	return BrandUnknown
}

// DetectType returns the full brand description for a number.
func DetectType(number string) TypeInfo {
	brand := DetectBrand(number)
	rule, ok := brandSpecs[brand]
	if !ok {
		return TypeInfo{
			Brand:       BrandUnknown,
			DisplayName: "Unknown",
			Lengths:     []int{},
			CVVLength:   3,
			Supported:   false,
		}
	}
	return TypeInfo{
		Brand:       brand,
		DisplayName: rule.display,
		Lengths:     rule.lengths,
		CVVLength:   rule.cvvLength,
		Supported:   true,
	}
}

// CVVLength is 4 for American Express and 3 for everything else.
func CVVLength(brand Brand) int {
	if brand == BrandAmericanExpress {
		return 4
	}
	return 3
}
