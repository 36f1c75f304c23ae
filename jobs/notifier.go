package jobs

import (
	"context"

	"github.com/aquatrack/aquatrack/internal/payments"
)

// PaymentNotifier queues payment receipt emails instead of sending them
// inline, keeping SMTP out of the payment transaction path.
type PaymentNotifier struct {
	client *Client
}

// NewPaymentNotifier constructs a PaymentNotifier.
func NewPaymentNotifier(client *Client) *PaymentNotifier {
	return &PaymentNotifier{client: client}
}

// PaymentRecorded implements payments.Notifier.
func (n *PaymentNotifier) PaymentRecorded(ctx context.Context, note payments.Notification) error {
	_, err := n.client.EnqueuePaymentEmail(ctx, PaymentEmailPayload{
		SaleID:        note.SaleID,
		ReceiptNumber: note.ReceiptNumber,
		CustomerName:  note.CustomerName,
		CustomerEmail: note.CustomerEmail,
		Amount:        note.Amount,
		BalanceDue:    note.BalanceDue,
	})
	return err
}
