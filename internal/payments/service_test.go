package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquatrack/aquatrack/internal/sales"
	"github.com/aquatrack/aquatrack/internal/shared"
)

type fakeStore struct {
	sales    map[int64]SaleTotals
	payments map[int64]Payment
	contacts map[int64]Notification
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sales:    make(map[int64]SaleTotals),
		payments: make(map[int64]Payment),
		contacts: make(map[int64]Notification),
	}
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx TxStore) error) error {
	salesSnap := make(map[int64]SaleTotals, len(f.sales))
	for k, v := range f.sales {
		salesSnap[k] = v
	}
	paySnap := make(map[int64]Payment, len(f.payments))
	for k, v := range f.payments {
		paySnap[k] = v
	}
	if err := fn(f); err != nil {
		f.sales, f.payments = salesSnap, paySnap
		return err
	}
	return nil
}

func (f *fakeStore) GetSaleForUpdate(_ context.Context, saleID int64) (SaleTotals, error) {
	s, ok := f.sales[saleID]
	if !ok {
		return SaleTotals{}, fmt.Errorf("payments: sale %d: %w", saleID, shared.ErrNotFound)
	}
	return s, nil
}

func (f *fakeStore) UpdateSaleAmounts(_ context.Context, saleID int64, paid, balance float64) error {
	s := f.sales[saleID]
	s.PaidAmount, s.BalanceDue = paid, balance
	f.sales[saleID] = s
	return nil
}

func (f *fakeStore) InsertPayment(_ context.Context, payment *Payment) error {
	f.nextID++
	payment.ID = f.nextID
	f.payments[payment.ID] = *payment
	return nil
}

func (f *fakeStore) GetPaymentForUpdate(_ context.Context, id int64) (Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return Payment{}, fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (f *fakeStore) UpdatePayment(_ context.Context, payment Payment) error {
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakeStore) DeletePayment(_ context.Context, id int64) error {
	if _, ok := f.payments[id]; !ok {
		return fmt.Errorf("payments: payment %d: %w", id, shared.ErrNotFound)
	}
	delete(f.payments, id)
	return nil
}

func (f *fakeStore) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return f.GetPaymentForUpdate(ctx, id)
}

func (f *fakeStore) ListPayments(_ context.Context, filter Filter) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		if filter.SaleID != nil && p.RetailSaleID != *filter.SaleID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) NotificationInfo(_ context.Context, saleID int64) (Notification, error) {
	n, ok := f.contacts[saleID]
	if !ok {
		return Notification{}, fmt.Errorf("payments: customer for sale %d: %w", saleID, shared.ErrNotFound)
	}
	return n, nil
}

type recordingNotifier struct {
	sent []Notification
}

func (r *recordingNotifier) PaymentRecorded(_ context.Context, n Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func newTestLedger(t *testing.T) (*Service, *fakeStore, *recordingNotifier) {
	t.Helper()
	store := newFakeStore()
	store.sales[1] = SaleTotals{ID: 1, SaleType: sales.TypeCredit, TotalAmount: 1000, PaidAmount: 800, BalanceDue: 200}
	store.sales[2] = SaleTotals{ID: 2, SaleType: sales.TypeNormal, TotalAmount: 500, PaidAmount: 0, BalanceDue: 500}
	store.contacts[1] = Notification{SaleID: 1, ReceiptNumber: "20250310001", CustomerName: "Halima Stores", CustomerEmail: "halima@example.com", BalanceDue: 200}

	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	clock := shared.NewClockAt(loc, time.Date(2025, 3, 10, 12, 0, 0, 0, loc))
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, store, notifier, clock), store, notifier
}

func TestRecordUpdatesSaleTotals(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestLedger(t)

	payment, err := svc.Record(ctx, 2, RecordInput{Amount: 300, PaymentMethod: "Cash"})
	require.NoError(t, err)
	require.NotZero(t, payment.ID)
	require.InDelta(t, 300.0, store.sales[2].PaidAmount, 1e-9)
	require.InDelta(t, 200.0, store.sales[2].BalanceDue, 1e-9)
}

func TestRecordRejectsOverpayment(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestLedger(t)

	_, err := svc.Record(ctx, 1, RecordInput{Amount: 250, PaymentMethod: "M-Pesa"})
	require.ErrorIs(t, err, shared.ErrOverpayment)
	require.InDelta(t, 800.0, store.sales[1].PaidAmount, 1e-9)
	require.Empty(t, store.payments)
}

func TestRecordAllowsExactRemaining(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestLedger(t)

	_, err := svc.Record(ctx, 1, RecordInput{Amount: 200, PaymentMethod: "Cash"})
	require.NoError(t, err)
	require.InDelta(t, 1000.0, store.sales[1].PaidAmount, 1e-9)
	require.InDelta(t, 0.0, store.sales[1].BalanceDue, 1e-9)
}

func TestRecordValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)

	_, err := svc.Record(ctx, 2, RecordInput{Amount: 0, PaymentMethod: "Cash"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Record(ctx, 2, RecordInput{Amount: 100, PaymentMethod: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordCreditOnlyRejectsNormalSale(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)

	_, err := svc.Record(ctx, 2, RecordInput{Amount: 100, PaymentMethod: "Cash", CreditOnly: true})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordCreditSaleNotifiesCustomer(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestLedger(t)

	_, err := svc.Record(ctx, 1, RecordInput{Amount: 150, PaymentMethod: "Cash"})
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, "halima@example.com", notifier.sent[0].CustomerEmail)
	require.InDelta(t, 150.0, notifier.sent[0].Amount, 1e-9)
}

func TestRecordNormalSaleDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestLedger(t)

	_, err := svc.Record(ctx, 2, RecordInput{Amount: 100, PaymentMethod: "Cash"})
	require.NoError(t, err)
	require.Empty(t, notifier.sent)
}

func TestUpdateShiftsPaidByDelta(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestLedger(t)

	payment, err := svc.Record(ctx, 2, RecordInput{Amount: 300, PaymentMethod: "Cash"})
	require.NoError(t, err)

	amount := 450.0
	_, err = svc.Update(ctx, payment.ID, UpdateInput{Amount: &amount})
	require.NoError(t, err)
	require.InDelta(t, 450.0, store.sales[2].PaidAmount, 1e-9)
	require.InDelta(t, 50.0, store.sales[2].BalanceDue, 1e-9)
}

func TestUpdateRejectsExceedingTotal(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestLedger(t)

	payment, err := svc.Record(ctx, 2, RecordInput{Amount: 300, PaymentMethod: "Cash"})
	require.NoError(t, err)

	amount := 600.0
	_, err = svc.Update(ctx, payment.ID, UpdateInput{Amount: &amount})
	require.ErrorIs(t, err, shared.ErrOverpayment)
	require.InDelta(t, 300.0, store.sales[2].PaidAmount, 1e-9)
	require.InDelta(t, 300.0, store.payments[payment.ID].Amount, 1e-9)
}

func TestDeleteFloorsPaidAtZero(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestLedger(t)

	payment, err := svc.Record(ctx, 2, RecordInput{Amount: 300, PaymentMethod: "Cash"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, payment.ID))
	require.InDelta(t, 0.0, store.sales[2].PaidAmount, 1e-9)
	require.InDelta(t, 500.0, store.sales[2].BalanceDue, 1e-9)
	require.Empty(t, store.payments)
}
