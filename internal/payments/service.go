package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aquatrack/aquatrack/internal/sales"
	"github.com/aquatrack/aquatrack/internal/shared"
)

// Notifier delivers customer payment receipts out of band. Failures are
// logged, never surfaced to the caller.
type Notifier interface {
	PaymentRecorded(ctx context.Context, n Notification) error
}

// NopNotifier drops notifications.
type NopNotifier struct{}

// PaymentRecorded implements Notifier.
func (NopNotifier) PaymentRecorded(context.Context, Notification) error { return nil }

// Service is the payment ledger. Recording, editing and deleting payments
// keeps the owning sale's paid_amount and balance_due consistent in the same
// transaction, and never allows the paid amount past the sale total.
type Service struct {
	logger   *slog.Logger
	store    Store
	notifier Notifier
	clock    *shared.Clock
}

// NewService builds Service.
func NewService(logger *slog.Logger, store Store, notifier Notifier, clock *shared.Clock) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{logger: logger, store: store, notifier: notifier, clock: clock}
}

// RecordInput is the payload for recording a payment against a sale.
type RecordInput struct {
	Amount        float64
	PaymentMethod string
	Date          *time.Time
	// CreditOnly restricts recording to credit sales.
	CreditOnly bool
}

// Record applies a payment to a sale. The amount must be positive and must
// not exceed the remaining balance beyond float tolerance.
func (s *Service) Record(ctx context.Context, saleID int64, input RecordInput) (Payment, error) {
	if input.Amount <= 0 {
		return Payment{}, fmt.Errorf("payments: amount must be > 0: %w", shared.ErrValidation)
	}
	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		return Payment{}, fmt.Errorf("payments: payment_method is required: %w", shared.ErrValidation)
	}

	date := s.clock.NowUTC()
	if input.Date != nil {
		date, _ = s.clock.DayBoundsUTC(*input.Date)
	}
	payment := Payment{
		Amount:        input.Amount,
		PaymentMethod: &method,
		Date:          date,
	}
	if actor := shared.ActorFromContext(ctx); actor != nil {
		payment.AddedBy = &actor.ID
	}

	var saleType string
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.IsDeleted {
			return fmt.Errorf("payments: sale %d: %w", saleID, shared.ErrNotFound)
		}
		if input.CreditOnly && sale.SaleType != sales.TypeCredit {
			return fmt.Errorf("payments: sale %d is not a credit sale: %w", saleID, shared.ErrValidation)
		}
		saleType = sale.SaleType

		remaining := balanceDue(sale.TotalAmount, sale.PaidAmount)
		if input.Amount > remaining+shared.AmountTolerance {
			return fmt.Errorf("payments: amount exceeds remaining balance %.2f: %w", remaining, shared.ErrOverpayment)
		}

		payment.RetailSaleID = saleID
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		paid := sale.PaidAmount + input.Amount
		return tx.UpdateSaleAmounts(ctx, saleID, paid, balanceDue(sale.TotalAmount, paid))
	})
	if err != nil {
		return Payment{}, err
	}

	if saleType == sales.TypeCredit {
		s.notify(ctx, payment)
	}
	return payment, nil
}

// notify sends the credit repayment email best-effort.
func (s *Service) notify(ctx context.Context, payment Payment) {
	info, err := s.store.NotificationInfo(ctx, payment.RetailSaleID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("payment notification lookup", slog.Any("error", err))
		}
		return
	}
	info.Amount = payment.Amount
	if err := s.notifier.PaymentRecorded(ctx, info); err != nil {
		s.logger.Warn("payment notification enqueue",
			slog.Int64("sale_id", payment.RetailSaleID), slog.Any("error", err))
	}
}

// UpdateInput carries partial changes to a payment. Reassigning a payment to
// another sale is not allowed.
type UpdateInput struct {
	Amount        *float64
	PaymentMethod *string
	Date          *time.Time
}

// Update edits a payment, shifting the sale's paid amount by the difference.
// The resulting paid amount must stay within [0, total].
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Payment, error) {
	if input.Amount != nil && *input.Amount <= 0 {
		return Payment{}, fmt.Errorf("payments: amount must be > 0: %w", shared.ErrValidation)
	}

	var updated Payment
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		payment, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sale, err := tx.GetSaleForUpdate(ctx, payment.RetailSaleID)
		if err != nil {
			return err
		}

		delta := 0.0
		if input.Amount != nil {
			newPaid := sale.PaidAmount - payment.Amount + *input.Amount
			if newPaid < -shared.AmountTolerance {
				return fmt.Errorf("payments: resulting paid amount would be negative: %w", shared.ErrValidation)
			}
			if newPaid > sale.TotalAmount+shared.AmountTolerance {
				return fmt.Errorf("payments: resulting paid amount would exceed total: %w", shared.ErrOverpayment)
			}
			delta = *input.Amount - payment.Amount
			payment.Amount = *input.Amount
		}
		if input.PaymentMethod != nil {
			method := strings.TrimSpace(*input.PaymentMethod)
			if method == "" {
				payment.PaymentMethod = nil
			} else {
				payment.PaymentMethod = &method
			}
		}
		if input.Date != nil {
			start, _ := s.clock.DayBoundsUTC(*input.Date)
			payment.Date = start
		}

		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		if delta != 0 {
			paid := sale.PaidAmount + delta
			if err := tx.UpdateSaleAmounts(ctx, sale.ID, paid, balanceDue(sale.TotalAmount, paid)); err != nil {
				return err
			}
		}
		updated = payment
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	return updated, nil
}

// Delete removes a payment, flooring the sale's paid amount at zero.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx TxStore) error {
		payment, err := tx.GetPaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sale, err := tx.GetSaleForUpdate(ctx, payment.RetailSaleID)
		if err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}
		paid := sale.PaidAmount - payment.Amount
		if paid < 0 {
			paid = 0
		}
		return tx.UpdateSaleAmounts(ctx, sale.ID, paid, balanceDue(sale.TotalAmount, paid))
	})
}

// Get fetches a payment by id.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// List lists payments, optionally scoped to a sale and a business-day range.
func (s *Service) List(ctx context.Context, filter Filter) ([]Payment, error) {
	return s.store.ListPayments(ctx, filter)
}

func balanceDue(total, paid float64) float64 {
	if due := total - paid; due > 0 {
		return due
	}
	return 0
}
