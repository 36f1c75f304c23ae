package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquatrack/aquatrack/internal/shared"
)

const uniqueViolation = "23505"

// Repository persists bottle sizes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns one bottle size by id.
func (r *Repository) Get(ctx context.Context, id int64) (BottleSize, error) {
	var bs BottleSize
	err := r.pool.QueryRow(ctx,
		`SELECT id, label, selling_price, cost_price_carton FROM bottle_sizes WHERE id = $1`, id,
	).Scan(&bs.ID, &bs.Label, &bs.SellingPrice, &bs.CostPriceCarton)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BottleSize{}, fmt.Errorf("catalog: bottle size %d: %w", id, shared.ErrNotFound)
		}
		return BottleSize{}, err
	}
	return bs, nil
}

// List returns all bottle sizes ordered by label.
func (r *Repository) List(ctx context.Context) ([]BottleSize, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, label, selling_price, cost_price_carton FROM bottle_sizes ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []BottleSize
	for rows.Next() {
		var bs BottleSize
		if err := rows.Scan(&bs.ID, &bs.Label, &bs.SellingPrice, &bs.CostPriceCarton); err != nil {
			return nil, err
		}
		sizes = append(sizes, bs)
	}
	return sizes, rows.Err()
}

// Create inserts a bottle size, translating duplicate labels into ErrConflict.
func (r *Repository) Create(ctx context.Context, bs BottleSize) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bottle_sizes (label, selling_price, cost_price_carton) VALUES ($1, $2, $3) RETURNING id`,
		bs.Label, bs.SellingPrice, bs.CostPriceCarton,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("catalog: label %q already exists: %w", bs.Label, shared.ErrConflict)
		}
		return 0, err
	}
	return id, nil
}

// Update rewrites label and prices for an existing size.
func (r *Repository) Update(ctx context.Context, bs BottleSize) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bottle_sizes SET label = $2, selling_price = $3, cost_price_carton = $4 WHERE id = $1`,
		bs.ID, bs.Label, bs.SellingPrice, bs.CostPriceCarton)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("catalog: label %q already exists: %w", bs.Label, shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: bottle size %d: %w", bs.ID, shared.ErrNotFound)
	}
	return nil
}

// InUse reports whether any active packaging entry references the size.
func (r *Repository) InUse(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM packaging_entries WHERE bottle_size_id = $1 AND NOT is_deleted)`, id,
	).Scan(&exists)
	return exists, err
}

// Delete removes the size permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bottle_sizes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: bottle size %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
