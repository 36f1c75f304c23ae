package payments

import "time"

// Payment is a payment row applied against a sale.
type Payment struct {
	ID            int64     `json:"id"`
	RetailSaleID  int64     `json:"retail_sale_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	Date          time.Time `json:"date"`
	AddedBy       *int64    `json:"added_by,omitempty"`
}

// SaleTotals is the slice of the sale header the ledger mutates.
type SaleTotals struct {
	ID          int64
	SaleType    string
	TotalAmount float64
	PaidAmount  float64
	BalanceDue  float64
	IsDeleted   bool
}

// Notification carries the data for a best-effort customer payment email.
type Notification struct {
	SaleID        int64   `json:"sale_id"`
	ReceiptNumber string  `json:"receipt_number"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	Amount        float64 `json:"amount"`
	BalanceDue    float64 `json:"balance_due"`
}

// Filter narrows payment listings. Start and End are UTC bounds, End exclusive.
type Filter struct {
	SaleID *int64
	Start  time.Time
	End    time.Time
}
