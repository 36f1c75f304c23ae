package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func TestPaymentEmailHandlerSends(t *testing.T) {
	mailer := &recordingMailer{}
	handler := PaymentEmailHandler(slog.Default(), mailer, "AquaTrack Waters Ltd")

	task, err := NewPaymentEmailTask(PaymentEmailPayload{
		SaleID:        42,
		ReceiptNumber: "20250310007",
		CustomerName:  "Halima Stores",
		CustomerEmail: "halima@example.com",
		Amount:        500,
		BalanceDue:    200,
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, "halima@example.com", mailer.to)
	require.Equal(t, "Payment Received - Receipt 20250310007", mailer.subject)
	require.Contains(t, mailer.body, "Hello Halima Stores,")
	require.Contains(t, mailer.body, "sale #42")
	require.Contains(t, mailer.body, "Amount Paid: 500.00")
	require.Contains(t, mailer.body, "Remaining Balance: 200.00")
	require.Contains(t, mailer.body, "AquaTrack Waters Ltd")
}

func TestPaymentEmailHandlerSkipsMissingEmail(t *testing.T) {
	mailer := &recordingMailer{}
	handler := PaymentEmailHandler(slog.Default(), mailer, "AquaTrack")

	task, err := NewPaymentEmailTask(PaymentEmailPayload{SaleID: 1})
	require.NoError(t, err)

	require.ErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)
	require.Empty(t, mailer.to)
}

func TestPaymentEmailHandlerSkipsBadPayload(t *testing.T) {
	handler := PaymentEmailHandler(slog.Default(), &recordingMailer{}, "AquaTrack")
	task := asynq.NewTask(TaskTypePaymentEmail, []byte("{not json"))

	require.ErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)
}

func TestPaymentEmailHandlerPropagatesSendError(t *testing.T) {
	sendErr := errors.New("smtp unreachable")
	mailer := &recordingMailer{err: sendErr}
	handler := PaymentEmailHandler(slog.Default(), mailer, "AquaTrack")

	task, err := NewPaymentEmailTask(PaymentEmailPayload{SaleID: 1, CustomerEmail: "x@example.com"})
	require.NoError(t, err)

	require.ErrorIs(t, handler(context.Background(), task), sendErr)
}

type fakeWarmer struct {
	calls int
	err   error
}

func (f *fakeWarmer) WarmDaily(context.Context) error {
	f.calls++
	return f.err
}

func TestReportWarmupHandler(t *testing.T) {
	warmer := &fakeWarmer{}
	handler := ReportWarmupHandler(slog.Default(), warmer)

	require.NoError(t, handler(context.Background(), NewReportWarmupTask()))
	require.Equal(t, 1, warmer.calls)

	handler = ReportWarmupHandler(slog.Default(), nil)
	require.ErrorIs(t, handler(context.Background(), NewReportWarmupTask()), asynq.SkipRetry)
}
