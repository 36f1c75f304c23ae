package packaging

import "time"

// Entry records a production run: quantity is counted in cartons. Creating an
// entry credits the stock balance for its bottle size; soft deletion reverses
// that credit.
type Entry struct {
	ID              int64     `json:"id"`
	Date            time.Time `json:"date"`
	BottleSizeID    int64     `json:"bottle_size_id"`
	QuantityCartons int       `json:"cartons"`
	AddedBy         *int64    `json:"added_by,omitempty"`
	IsDeleted       bool      `json:"is_deleted"`
}

// View is the API representation of an entry with joined size data.
type View struct {
	ID              int64     `json:"id"`
	Date            string    `json:"date"`
	BottleSizeID    int64     `json:"bottle_size_id"`
	BottleSizeLabel string    `json:"bottle_size_label"`
	Cartons         int       `json:"cartons"`
	Bottles         *int      `json:"bottles,omitempty"`
	UnitsPerCarton  *int      `json:"units_per_carton,omitempty"`
	AddedBy         *int64    `json:"added_by,omitempty"`
	AddedByName     *string   `json:"added_by_name,omitempty"`
	IsDeleted       bool      `json:"is_deleted"`
}

// Filter narrows entry listings. The service fills DateFrom/DateTo with UTC
// window bounds; the repository treats DateTo as exclusive.
type Filter struct {
	BottleSizeID   *int64
	DateFrom       time.Time
	DateTo         time.Time
	IncludeDeleted bool
	OrderAsc       bool
}
