package expenses

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// RepositoryPort is the persistence port for expenses.
type RepositoryPort interface {
	Create(ctx context.Context, expense *Expense) error
	Get(ctx context.Context, id int64) (Expense, error)
	Update(ctx context.Context, expense Expense) error
	SetDeleted(ctx context.Context, id int64, deleted bool) error
	List(ctx context.Context, filter Filter) ([]Expense, error)
}

// Repository is the pgx-backed RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, expense *Expense) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO expenses (date, description, category, amount, payment_method, added_by, is_deleted)
		 VALUES ($1, $2, $3, $4, $5, $6, false) RETURNING id`,
		expense.Date, expense.Description, expense.Category, expense.Amount,
		expense.PaymentMethod, expense.AddedBy,
	).Scan(&expense.ID)
}

func (r *Repository) Get(ctx context.Context, id int64) (Expense, error) {
	var e Expense
	err := r.pool.QueryRow(ctx,
		`SELECT id, date, description, category, amount, payment_method, added_by, is_deleted
		 FROM expenses WHERE id = $1`, id,
	).Scan(&e.ID, &e.Date, &e.Description, &e.Category, &e.Amount, &e.PaymentMethod, &e.AddedBy, &e.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, fmt.Errorf("expenses: expense %d: %w", id, shared.ErrNotFound)
		}
		return Expense{}, err
	}
	return e, nil
}

func (r *Repository) Update(ctx context.Context, expense Expense) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE expenses SET date = $2, description = $3, category = $4, amount = $5, payment_method = $6
		 WHERE id = $1`,
		expense.ID, expense.Date, expense.Description, expense.Category, expense.Amount, expense.PaymentMethod)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expenses: expense %d: %w", expense.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE expenses SET is_deleted = $2 WHERE id = $1`, id, deleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expenses: expense %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]Expense, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}
	if !filter.IncludeDeleted {
		clauses = append(clauses, "NOT is_deleted")
	}
	if !filter.DateFrom.IsZero() {
		add("date >= ", filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		add("date < ", filter.DateTo)
	}
	if filter.Category != "" {
		add("LOWER(category) = LOWER(", filter.Category)
		clauses[len(clauses)-1] += ")"
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, date, description, category, amount, payment_method, added_by, is_deleted
		 FROM expenses`+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Description, &e.Category, &e.Amount, &e.PaymentMethod, &e.AddedBy, &e.IsDeleted); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
