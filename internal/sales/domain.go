package sales

import "time"

// Sale types. Dispatch sales stay open until the driver returns and the sale
// is closed against the unsold cartons.
const (
	TypeNormal   = "normal"
	TypeCredit   = "credit"
	TypeDispatch = "dispatch"
)

// ValidType reports whether t is a known sale type.
func ValidType(t string) bool {
	return t == TypeNormal || t == TypeCredit || t == TypeDispatch
}

// Sale is a retail sale header. Amounts are per carton and balance_due is
// always recomputed as max(0, total-paid) before persisting.
type Sale struct {
	ID            int64     `json:"id"`
	SaleType      string    `json:"sale_type"`
	ReceiptNumber string    `json:"receipt_number"`
	Date          time.Time `json:"date"`
	CustomerID    *int64    `json:"customer_id,omitempty"`
	CustomerName  *string   `json:"customer_name,omitempty"`
	TotalAmount   float64   `json:"total_amount"`
	PaidAmount    float64   `json:"paid_amount"`
	BalanceDue    float64   `json:"balance_due"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	AddedBy       *int64    `json:"added_by,omitempty"`
	IsDeleted     bool      `json:"is_deleted"`

	Items    []SaleItem `json:"items,omitempty"`
	Payments []Payment  `json:"payments,omitempty"`
}

// SaleItem is one line of a sale. Quantity is cartons; the COGS columns are a
// snapshot of the size's cost at sale time so later catalog edits do not
// rewrite history.
type SaleItem struct {
	ID              int64   `json:"id"`
	SaleID          int64   `json:"sale_id"`
	BottleSizeID    int64   `json:"bottle_size_id"`
	BottleSizeLabel string  `json:"bottle_size_label,omitempty"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	TotalPrice      float64 `json:"total_price"`
	CogsUnitPrice   float64 `json:"cogs_unit_price"`
	CogsTotal       float64 `json:"cogs_total"`
}

// Payment is a payment applied to a sale.
type Payment struct {
	ID            int64     `json:"id"`
	RetailSaleID  int64     `json:"retail_sale_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	Date          time.Time `json:"date"`
	AddedBy       *int64    `json:"added_by,omitempty"`
}

// PaidState filters for the listing endpoints.
const (
	PaidStateAny     = ""
	PaidStatePaid    = "paid"
	PaidStateUnpaid  = "unpaid"
	PaidStatePartial = "partial"
)

// Filter narrows sale listings. Start and End are UTC instants derived from
// business-calendar days, End exclusive.
type Filter struct {
	Query          string
	Receipt        string
	Customer       string
	SaleType       string
	AddedBy        *int64
	BottleSizeID   *int64
	MinTotal       *float64
	MaxTotal       *float64
	PaidState      string
	Start          time.Time
	End            time.Time
	IncludeDeleted bool
	OrderAsc       bool
}
