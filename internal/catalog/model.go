package catalog

import "strings"

// BottleSize defines a sellable unit. Prices are per carton.
type BottleSize struct {
	ID              int64   `json:"id"`
	Label           string  `json:"label"`
	SellingPrice    float64 `json:"selling_price"`
	CostPriceCarton float64 `json:"cost_price_carton"`
}

// PackSizes maps a bottle-size label to the number of bottles per carton.
// Labels not present have no derived bottle count.
type PackSizes map[string]int

// DefaultPackSizes mirrors the production carton packing table.
func DefaultPackSizes() PackSizes {
	return PackSizes{
		"500ml": 24,
		"1.5L":  12,
		"5L":    4,
	}
}

// UnitsPerCarton resolves the bottles-per-carton for a label, matching
// case-insensitively. ok is false for unknown labels.
func (p PackSizes) UnitsPerCarton(label string) (int, bool) {
	if label == "" {
		return 0, false
	}
	if n, ok := p[label]; ok {
		return n, true
	}
	for k, n := range p {
		if strings.EqualFold(k, label) {
			return n, true
		}
	}
	return 0, false
}

// View is the API representation of a bottle size with derived packing info.
type View struct {
	ID              int64   `json:"id"`
	Label           string  `json:"label"`
	SellingPrice    float64 `json:"selling_price"`
	CostPriceCarton float64 `json:"cost_price_carton"`
	UnitsPerCarton  *int    `json:"units_per_carton,omitempty"`
}
