package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// TxStore is the transactional slice of ledger persistence. Implementations
// must run inside the caller's transaction so the non-negativity check and
// the associated mutation commit or roll back together.
type TxStore interface {
	GetBalanceForUpdate(ctx context.Context, bottleSizeID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
}

// Ledger owns every quantity change to stock balances. All other components
// route their stock effects through Adjust; none write balances directly.
type Ledger struct {
	clock *shared.Clock
}

// NewLedger builds a Ledger.
func NewLedger(clock *shared.Clock) *Ledger {
	return &Ledger{clock: clock}
}

// Adjust applies a signed carton delta to the balance for bottleSizeID,
// lazily creating the row. It fails with shared.ErrInsufficientStock when the
// result would be negative, leaving the balance untouched; the enclosing
// transaction is expected to roll back everything else.
func (l *Ledger) Adjust(ctx context.Context, store TxStore, bottleSizeID int64, deltaCartons int) (Balance, error) {
	if bottleSizeID <= 0 {
		return Balance{}, fmt.Errorf("stock: bottle size required: %w", shared.ErrValidation)
	}
	balance, err := store.GetBalanceForUpdate(ctx, bottleSizeID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Balance{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{BottleSizeID: bottleSizeID}
	}

	newQty := balance.QuantityAvailable + deltaCartons
	if newQty < 0 {
		return Balance{}, fmt.Errorf("stock: size %d has %d cartons, need %d: %w",
			bottleSizeID, balance.QuantityAvailable, -deltaCartons, shared.ErrInsufficientStock)
	}

	balance.QuantityAvailable = newQty
	balance.UpdatedAt = l.clock.NowUTC()
	if err := store.UpsertBalance(ctx, balance); err != nil {
		return Balance{}, err
	}
	return balance, nil
}
