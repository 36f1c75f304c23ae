package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRepo is the pgx-backed TxStore. Construct it with the caller's open
// transaction so balance reads lock the row for the duration of that tx.
type TxRepo struct {
	q dbtx
}

// NewTxStore wraps a transaction (or pool, for single-statement use) as a TxStore.
func NewTxStore(q dbtx) *TxRepo {
	return &TxRepo{q: q}
}

// GetBalanceForUpdate reads the balance row under FOR UPDATE.
func (r *TxRepo) GetBalanceForUpdate(ctx context.Context, bottleSizeID int64) (Balance, error) {
	var b Balance
	err := r.q.QueryRow(ctx,
		`SELECT bottle_size_id, quantity_available, updated_at FROM stock_balances WHERE bottle_size_id = $1 FOR UPDATE`,
		bottleSizeID,
	).Scan(&b.BottleSizeID, &b.QuantityAvailable, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{BottleSizeID: bottleSizeID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// UpsertBalance writes the new quantity, creating the row when missing.
func (r *TxRepo) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO stock_balances (bottle_size_id, quantity_available, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (bottle_size_id) DO UPDATE SET quantity_available = $2, updated_at = $3`,
		balance.BottleSizeID, balance.QuantityAvailable, balance.UpdatedAt)
	return err
}

// Repository serves the read side of the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListLevels returns one row per catalog size with the on-hand cartons,
// zero for sizes that have never been adjusted.
func (r *Repository) ListLevels(ctx context.Context) ([]LevelView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT bs.id, bs.label, bs.selling_price,
		       COALESCE(sb.quantity_available, 0), sb.updated_at
		FROM bottle_sizes bs
		LEFT JOIN stock_balances sb ON sb.bottle_size_id = bs.id
		ORDER BY bs.label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []LevelView
	for rows.Next() {
		var lv LevelView
		if err := rows.Scan(&lv.BottleSizeID, &lv.Label, &lv.CartonPrice, &lv.CartonsOnHand, &lv.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, lv)
	}
	return levels, rows.Err()
}
