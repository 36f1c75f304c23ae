package expenses

import "time"

// CategoryCOGS marks an expense as a purchase-side cost of goods sold; the
// margin reports add these to the sales-side COGS snapshots.
const CategoryCOGS = "cogs"

// Allowed payment methods for expenses.
var allowedPayMethods = map[string]struct{}{
	"Cash":   {},
	"M-Pesa": {},
	"Bank":   {},
	"Other":  {},
}

// Expense is an operating cost entry. Date is a business-calendar day.
type Expense struct {
	ID            int64     `json:"id"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	Category      *string   `json:"category,omitempty"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	AddedBy       *int64    `json:"added_by,omitempty"`
	IsDeleted     bool      `json:"is_deleted"`
}

// Filter narrows expense listings. The service fills DateFrom/DateTo with
// UTC window bounds; the repository treats DateTo as exclusive.
type Filter struct {
	DateFrom       time.Time
	DateTo         time.Time
	Category       string
	IncludeDeleted bool
}
