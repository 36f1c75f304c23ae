package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePaymentEmail is the task type for customer payment receipts.
	TaskTypePaymentEmail = "mail:payment_receipt"
	// TaskTypeReportWarmup is the task type for pre-warming report caches.
	TaskTypeReportWarmup = "reports:warmup"
)

// PaymentEmailPayload describes a customer payment receipt email.
type PaymentEmailPayload struct {
	SaleID        int64   `json:"sale_id"`
	ReceiptNumber string  `json:"receipt_number"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	Amount        float64 `json:"amount"`
	BalanceDue    float64 `json:"balance_due"`
}

// NewPaymentEmailTask constructs an Asynq task.
func NewPaymentEmailTask(payload PaymentEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePaymentEmail, data), nil
}

// NewReportWarmupTask constructs the cache warmup task.
func NewReportWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReportWarmup, nil)
}

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer is the net/smtp backed Mailer.
type SMTPMailer struct {
	Addr     string
	From     string
	Username string
	Password string
	Host     string
}

// Send delivers one message. Authentication is skipped when no username is
// configured, which matches local relay setups.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	return smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(msg.String()))
}

// PaymentEmailHandler processes TaskTypePaymentEmail tasks.
func PaymentEmailHandler(logger *slog.Logger, mailer Mailer, businessName string) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PaymentEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.CustomerEmail == "" {
			return asynq.SkipRetry
		}
		name := payload.CustomerName
		if name == "" {
			name = "Customer"
		}
		subject := fmt.Sprintf("Payment Received - Receipt %s", payload.ReceiptNumber)
		body := fmt.Sprintf(
			"Hello %s,\n\nWe have received your payment for sale #%d.\n\nAmount Paid: %.2f\nRemaining Balance: %.2f\n\nThank you for your payment.\n\nBest regards,\n%s",
			name, payload.SaleID, payload.Amount, payload.BalanceDue, businessName)
		if err := mailer.Send(ctx, payload.CustomerEmail, subject, body); err != nil {
			logger.Error("send payment email",
				slog.String("to", payload.CustomerEmail),
				slog.Int64("sale_id", payload.SaleID),
				slog.Any("error", err))
			return err
		}
		logger.Info("payment email sent",
			slog.String("to", payload.CustomerEmail),
			slog.Int64("sale_id", payload.SaleID))
		return nil
	}
}

// ReportWarmer pre-computes the report windows the dashboard hits first.
type ReportWarmer interface {
	WarmDaily(ctx context.Context) error
}

// ReportWarmupHandler processes TaskTypeReportWarmup tasks.
func ReportWarmupHandler(logger *slog.Logger, warmer ReportWarmer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if warmer == nil {
			return asynq.SkipRetry
		}
		if err := warmer.WarmDaily(ctx); err != nil {
			logger.Error("report warmup", slog.Any("error", err))
			return err
		}
		logger.Info("report caches warmed")
		return nil
	}
}
