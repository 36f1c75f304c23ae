package packaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquatrack/aquatrack/internal/platform/db"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/internal/stock"
)

// TxStore groups the entry mutations that must share a transaction with the
// stock adjustments they cause.
type TxStore interface {
	GetEntryForUpdate(ctx context.Context, id int64) (Entry, error)
	InsertEntry(ctx context.Context, entry *Entry) error
	UpdateEntry(ctx context.Context, entry Entry) error
	SetEntryDeleted(ctx context.Context, id int64, deleted bool) error
	Stock() stock.TxStore
}

// Store is the persistence port for packaging entries.
type Store interface {
	WithTx(ctx context.Context, fn func(tx TxStore) error) error
	GetEntry(ctx context.Context, id int64, includeDeleted bool) (View, error)
	ListEntries(ctx context.Context, filter Filter, page, perPage int) ([]View, int, error)
}

// Repository is the pgx-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepo{q: tx})
	})
}

type txRepo struct {
	q pgx.Tx
}

func (t *txRepo) Stock() stock.TxStore {
	return stock.NewTxStore(t.q)
}

func (t *txRepo) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	var e Entry
	err := t.q.QueryRow(ctx,
		`SELECT id, date, bottle_size_id, quantity_cartons, added_by, is_deleted
		 FROM packaging_entries WHERE id = $1 FOR UPDATE`, id,
	).Scan(&e.ID, &e.Date, &e.BottleSizeID, &e.QuantityCartons, &e.AddedBy, &e.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

func (t *txRepo) InsertEntry(ctx context.Context, entry *Entry) error {
	return t.q.QueryRow(ctx,
		`INSERT INTO packaging_entries (date, bottle_size_id, quantity_cartons, added_by, is_deleted)
		 VALUES ($1, $2, $3, $4, false) RETURNING id`,
		entry.Date, entry.BottleSizeID, entry.QuantityCartons, entry.AddedBy,
	).Scan(&entry.ID)
}

func (t *txRepo) UpdateEntry(ctx context.Context, entry Entry) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE packaging_entries SET date = $2, bottle_size_id = $3, quantity_cartons = $4 WHERE id = $1`,
		entry.ID, entry.Date, entry.BottleSizeID, entry.QuantityCartons)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("packaging: entry %d: %w", entry.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) SetEntryDeleted(ctx context.Context, id int64, deleted bool) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE packaging_entries SET is_deleted = $2 WHERE id = $1`, id, deleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

const entrySelect = `
	SELECT pe.id, pe.date, pe.bottle_size_id, bs.label, pe.quantity_cartons,
	       pe.added_by, u.name, pe.is_deleted
	FROM packaging_entries pe
	JOIN bottle_sizes bs ON bs.id = pe.bottle_size_id
	LEFT JOIN users u ON u.id = pe.added_by`

// GetEntry fetches a single entry view.
func (r *Repository) GetEntry(ctx context.Context, id int64, includeDeleted bool) (View, error) {
	query := entrySelect + ` WHERE pe.id = $1`
	if !includeDeleted {
		query += ` AND NOT pe.is_deleted`
	}
	var (
		v View
		d time.Time
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &d, &v.BottleSizeID, &v.BottleSizeLabel, &v.Cartons,
		&v.AddedBy, &v.AddedByName, &v.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, fmt.Errorf("packaging: entry %d: %w", id, shared.ErrNotFound)
		}
		return View{}, err
	}
	v.Date = d.Format("2006-01-02")
	return v, nil
}

// ListEntries returns a filtered page of entry views plus the total count.
func (r *Repository) ListEntries(ctx context.Context, filter Filter, page, perPage int) ([]View, int, error) {
	where := ``
	args := []any{}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clause = clause + "$" + strconv.Itoa(len(args))
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}
	if !filter.IncludeDeleted {
		if where == "" {
			where = " WHERE NOT pe.is_deleted"
		} else {
			where += " AND NOT pe.is_deleted"
		}
	}
	if filter.BottleSizeID != nil {
		add("pe.bottle_size_id = ", *filter.BottleSizeID)
	}
	if !filter.DateFrom.IsZero() {
		add("pe.date >= ", filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		add("pe.date < ", filter.DateTo)
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM packaging_entries pe`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := ` ORDER BY pe.date DESC, pe.id DESC`
	if filter.OrderAsc {
		order = ` ORDER BY pe.date ASC, pe.id ASC`
	}
	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := entrySelect + where + order +
		" LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		var (
			v View
			d time.Time
		)
		if err := rows.Scan(&v.ID, &d, &v.BottleSizeID, &v.BottleSizeLabel, &v.Cartons,
			&v.AddedBy, &v.AddedByName, &v.IsDeleted); err != nil {
			return nil, 0, err
		}
		v.Date = d.Format("2006-01-02")
		views = append(views, v)
	}
	return views, total, rows.Err()
}
