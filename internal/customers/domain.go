package customers

import "time"

// Customer is a named buyer, required for credit sales so outstanding
// balances can be chased.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// View is a customer with the aggregated balance still owed across their
// non-deleted sales.
type View struct {
	Customer
	TotalBalanceDue float64 `json:"total_balance_due"`
	HasBalance      bool    `json:"has_balance"`
}
