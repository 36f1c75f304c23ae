package reports

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SizeAgg is one grouped row of sale items for a bottle size.
type SizeAgg struct {
	BottleSizeID *int64
	Label        string
	Cartons      int
	Revenue      float64
	CogsTotal    float64
}

// SaleHeader carries the fields the daily summary needs per sale.
type SaleHeader struct {
	ID   int64
	Date time.Time
}

// RepositoryPort is the read-only persistence port for summaries.
type RepositoryPort interface {
	SizeAggregates(ctx context.Context, startUTC, endUTC time.Time, includeDeleted bool) ([]SizeAgg, error)
	SumCOGSExpenses(ctx context.Context, from, to time.Time, includeDeleted bool) (float64, error)
	SaleHeaders(ctx context.Context, startUTC, endUTC time.Time, includeDeleted bool) ([]SaleHeader, error)
	GrossBySale(ctx context.Context, saleIDs []int64) (map[int64]float64, error)
	PaidBySale(ctx context.Context, saleIDs []int64) (map[int64]float64, error)
}

// Repository is the pgx-backed RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func saleWindowWhere(startUTC, endUTC time.Time, includeDeleted bool, args *[]any) string {
	var clauses []string
	if !includeDeleted {
		clauses = append(clauses, "NOT s.is_deleted")
	}
	if !startUTC.IsZero() {
		*args = append(*args, startUTC)
		clauses = append(clauses, "s.date >= $"+strconv.Itoa(len(*args)))
	}
	if !endUTC.IsZero() {
		*args = append(*args, endUTC)
		clauses = append(clauses, "s.date < $"+strconv.Itoa(len(*args)))
	}
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// SizeAggregates groups active sale items by bottle size within the UTC
// window, largest movers first.
func (r *Repository) SizeAggregates(ctx context.Context, startUTC, endUTC time.Time, includeDeleted bool) ([]SizeAgg, error) {
	var args []any
	where := saleWindowWhere(startUTC, endUTC, includeDeleted, &args)
	rows, err := r.pool.Query(ctx,
		`SELECT i.bottle_size_id,
		        COALESCE(b.label, 'Unknown'),
		        COALESCE(SUM(i.quantity), 0),
		        COALESCE(SUM(i.total_price), 0),
		        COALESCE(SUM(i.cogs_total), 0)
		 FROM retail_sale_items i
		 JOIN retail_sales s ON s.id = i.sale_id
		 LEFT JOIN bottle_sizes b ON b.id = i.bottle_size_id`+where+`
		 GROUP BY i.bottle_size_id, b.label
		 ORDER BY COALESCE(SUM(i.quantity), 0) DESC, COALESCE(SUM(i.total_price), 0) DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SizeAgg
	for rows.Next() {
		var agg SizeAgg
		if err := rows.Scan(&agg.BottleSizeID, &agg.Label, &agg.Cartons, &agg.Revenue, &agg.CogsTotal); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// SumCOGSExpenses totals expense rows tagged with the cogs category inside the
// half-open date-only window. Callers widen calendar bounds with
// shared.DateWindow before handing them in.
func (r *Repository) SumCOGSExpenses(ctx context.Context, from, to time.Time, includeDeleted bool) (float64, error) {
	args := []any{}
	clauses := []string{"LOWER(category) = 'cogs'"}
	if !includeDeleted {
		clauses = append(clauses, "NOT is_deleted")
	}
	if !from.IsZero() {
		args = append(args, from)
		clauses = append(clauses, "date >= $"+strconv.Itoa(len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		clauses = append(clauses, "date < $"+strconv.Itoa(len(args)))
	}
	var total float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE `+strings.Join(clauses, " AND "),
		args...).Scan(&total)
	return total, err
}

// SaleHeaders lists sale ids and timestamps within the UTC window.
func (r *Repository) SaleHeaders(ctx context.Context, startUTC, endUTC time.Time, includeDeleted bool) ([]SaleHeader, error) {
	var args []any
	where := saleWindowWhere(startUTC, endUTC, includeDeleted, &args)
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.date FROM retail_sales s`+where+` ORDER BY s.date, s.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaleHeader
	for rows.Next() {
		var h SaleHeader
		if err := rows.Scan(&h.ID, &h.Date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GrossBySale sums item totals per sale.
func (r *Repository) GrossBySale(ctx context.Context, saleIDs []int64) (map[int64]float64, error) {
	return r.sumBySale(ctx,
		`SELECT sale_id, COALESCE(SUM(total_price), 0) FROM retail_sale_items
		 WHERE sale_id = ANY($1) GROUP BY sale_id`, saleIDs)
}

// PaidBySale sums payment amounts per sale.
func (r *Repository) PaidBySale(ctx context.Context, saleIDs []int64) (map[int64]float64, error) {
	return r.sumBySale(ctx,
		`SELECT retail_sale_id, COALESCE(SUM(amount), 0) FROM customer_payments
		 WHERE retail_sale_id = ANY($1) GROUP BY retail_sale_id`, saleIDs)
}

func (r *Repository) sumBySale(ctx context.Context, query string, saleIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(saleIDs))
	if len(saleIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, query, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			sum float64
		)
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}
