package shared

import "errors"

// AmountTolerance absorbs float drift when comparing money amounts.
const AmountTolerance = 1e-9

var (
	// ErrNotFound indicates the referenced entity does not exist or is soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or semantically invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or referential conflict.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock indicates an adjustment would drive a stock balance negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverpayment indicates a payment amount exceeds the outstanding balance.
	ErrOverpayment = errors.New("overpayment")
	// ErrReceiptAllocation indicates the receipt-number retry budget was exhausted.
	ErrReceiptAllocation = errors.New("could not allocate receipt number")
	// ErrInvalidCredentials indicates a failed or missing authentication.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
