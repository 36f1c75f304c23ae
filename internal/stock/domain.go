package stock

import (
	"errors"
	"time"
)

// Balance is the authoritative on-hand carton count for one bottle size.
// Rows are created lazily on first adjustment and never go negative.
type Balance struct {
	BottleSizeID      int64     `json:"bottle_size_id"`
	QuantityAvailable int       `json:"quantity_available"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ErrBalanceNotFound indicates no balance row exists yet for a size.
var ErrBalanceNotFound = errors.New("stock balance not found")

// LevelView is the live stock listing row, including sizes that have never
// had a balance row.
type LevelView struct {
	BottleSizeID   int64      `json:"bottle_size_id"`
	Label          string     `json:"label"`
	CartonsOnHand  int        `json:"cartons_on_hand"`
	BottlesOnHand  *int       `json:"bottles_on_hand,omitempty"`
	UnitsPerCarton *int       `json:"units_per_carton,omitempty"`
	CartonPrice    float64    `json:"carton_price"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}
