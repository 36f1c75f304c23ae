package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquatrack/aquatrack/internal/shared"
)

type fakeTxStore struct {
	balances map[int64]Balance
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{balances: make(map[int64]Balance)}
}

func (f *fakeTxStore) GetBalanceForUpdate(_ context.Context, bottleSizeID int64) (Balance, error) {
	b, ok := f.balances[bottleSizeID]
	if !ok {
		return Balance{BottleSizeID: bottleSizeID}, ErrBalanceNotFound
	}
	return b, nil
}

func (f *fakeTxStore) UpsertBalance(_ context.Context, balance Balance) error {
	f.balances[balance.BottleSizeID] = balance
	return nil
}

func testClock() *shared.Clock {
	loc, _ := time.LoadLocation("Africa/Nairobi")
	return shared.NewClockAt(loc, time.Date(2025, 3, 10, 14, 30, 0, 0, loc))
}

func TestAdjustCreatesBalanceLazily(t *testing.T) {
	ctx := context.Background()
	store := newFakeTxStore()
	ledger := NewLedger(testClock())

	b, err := ledger.Adjust(ctx, store, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 20, b.QuantityAvailable)
	require.Equal(t, int64(1), b.BottleSizeID)
	require.Equal(t, 20, store.balances[1].QuantityAvailable)
}

func TestAdjustAccumulates(t *testing.T) {
	ctx := context.Background()
	store := newFakeTxStore()
	ledger := NewLedger(testClock())

	_, err := ledger.Adjust(ctx, store, 1, 20)
	require.NoError(t, err)

	b, err := ledger.Adjust(ctx, store, 1, -5)
	require.NoError(t, err)
	require.Equal(t, 15, b.QuantityAvailable)
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	store := newFakeTxStore()
	ledger := NewLedger(testClock())

	_, err := ledger.Adjust(ctx, store, 1, 3)
	require.NoError(t, err)

	_, err = ledger.Adjust(ctx, store, 1, -4)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 3, store.balances[1].QuantityAvailable)
}

func TestAdjustRejectsDebitOnMissingBalance(t *testing.T) {
	ctx := context.Background()
	store := newFakeTxStore()
	ledger := NewLedger(testClock())

	_, err := ledger.Adjust(ctx, store, 7, -1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, store.balances)
}

func TestAdjustStampsClockTime(t *testing.T) {
	ctx := context.Background()
	store := newFakeTxStore()
	clock := testClock()
	ledger := NewLedger(clock)

	b, err := ledger.Adjust(ctx, store, 1, 2)
	require.NoError(t, err)
	require.Equal(t, clock.NowUTC(), b.UpdatedAt)
}
