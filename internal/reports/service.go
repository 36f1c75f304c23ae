package reports

import (
	"context"
	"sort"
	"time"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// PackResolver derives bottles-per-carton from a size label.
type PackResolver interface {
	UnitsPerCarton(label string) (int, bool)
}

// Service serves read-only summaries over the sales and stock ledgers.
// It never mutates ledger state.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	packs PackResolver
	clock *shared.Clock
}

// NewService wires the repository with the cache helper.
func NewService(repo RepositoryPort, cache *Cache, packs PackResolver, clock *shared.Clock) *Service {
	return &Service{repo: repo, cache: cache, packs: packs, clock: clock}
}

func dayToken(d time.Time) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("2006-01-02")
}

// Cartons reports cartons sold and revenue per bottle size for the window.
func (s *Service) Cartons(ctx context.Context, win Window) (CartonsSummary, error) {
	key, err := s.cache.BuildKey(ctx, keyCartons(dayToken(win.From), dayToken(win.To), win.IncludeDeleted)...)
	if err != nil {
		return CartonsSummary{}, err
	}
	var out CartonsSummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.loadCartons(ctx, win)
	})
	return out, err
}

func (s *Service) loadCartons(ctx context.Context, win Window) (CartonsSummary, error) {
	startUTC, endUTC := s.clock.RangeUTC(win.From, win.To)
	aggs, err := s.repo.SizeAggregates(ctx, startUTC, endUTC, win.IncludeDeleted)
	if err != nil {
		return CartonsSummary{}, err
	}
	summary := CartonsSummary{BySize: make([]CartonsRow, 0, len(aggs))}
	for _, agg := range aggs {
		row := CartonsRow{
			BottleSizeID: agg.BottleSizeID,
			Label:        agg.Label,
			Cartons:      agg.Cartons,
			Revenue:      agg.Revenue,
		}
		if upc, ok := s.packs.UnitsPerCarton(agg.Label); ok {
			bottles := agg.Cartons * upc
			row.UnitsPerCarton = &upc
			row.Bottles = &bottles
			summary.Totals.Bottles += bottles
		}
		summary.BySize = append(summary.BySize, row)
		summary.Totals.Cartons += agg.Cartons
		summary.Totals.Revenue += agg.Revenue
	}
	return summary, nil
}

// Margin reports sales, combined cost of goods sold and gross margin for the
// window. Per-size rows carry sales-side costs only; standalone purchase
// expenses only enter the window totals.
func (s *Service) Margin(ctx context.Context, win Window) (MarginSummary, error) {
	key, err := s.cache.BuildKey(ctx, keyMargin(dayToken(win.From), dayToken(win.To), win.IncludeDeleted)...)
	if err != nil {
		return MarginSummary{}, err
	}
	var out MarginSummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.loadMargin(ctx, win)
	})
	return out, err
}

func marginPct(gross, sales float64) float64 {
	if sales <= shared.AmountTolerance {
		return 0
	}
	return gross / sales * 100
}

func (s *Service) loadMargin(ctx context.Context, win Window) (MarginSummary, error) {
	startUTC, endUTC := s.clock.RangeUTC(win.From, win.To)
	aggs, err := s.repo.SizeAggregates(ctx, startUTC, endUTC, win.IncludeDeleted)
	if err != nil {
		return MarginSummary{}, err
	}
	summary := MarginSummary{BySize: make([]MarginRow, 0, len(aggs))}
	var totalSales, cogsSales float64
	for _, agg := range aggs {
		gross := agg.Revenue - agg.CogsTotal
		summary.BySize = append(summary.BySize, MarginRow{
			BottleSizeID: agg.BottleSizeID,
			Label:        agg.Label,
			Cartons:      agg.Cartons,
			Sales:        agg.Revenue,
			COGS:         agg.CogsTotal,
			Gross:        gross,
			GM:           marginPct(gross, agg.Revenue),
		})
		totalSales += agg.Revenue
		cogsSales += agg.CogsTotal
	}

	expFrom, expTo := shared.DateWindow(win.From, win.To)
	purchases, err := s.repo.SumCOGSExpenses(ctx, expFrom, expTo, win.IncludeDeleted)
	if err != nil {
		return MarginSummary{}, err
	}
	combined := cogsSales + purchases
	gross := totalSales - combined
	summary.Totals = MarginTotals{
		Sales: totalSales,
		COGS:  combined,
		Gross: gross,
		GM:    marginPct(gross, totalSales),
		Breakdown: MarginBreakdown{
			CogsSales: cogsSales,
			Purchases: purchases,
		},
	}
	if !win.From.IsZero() {
		from := dayToken(win.From)
		summary.DateFrom = &from
	}
	if !win.To.IsZero() {
		to := dayToken(win.To)
		summary.DateTo = &to
	}
	return summary, nil
}

// Daily reports per-business-day gross, paid and outstanding balances.
func (s *Service) Daily(ctx context.Context, win Window) ([]DailyRow, error) {
	key, err := s.cache.BuildKey(ctx, keyDaily(dayToken(win.From), dayToken(win.To), win.IncludeDeleted)...)
	if err != nil {
		return nil, err
	}
	var out []DailyRow
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.loadDaily(ctx, win)
	})
	return out, err
}

func (s *Service) loadDaily(ctx context.Context, win Window) ([]DailyRow, error) {
	startUTC, endUTC := s.clock.RangeUTC(win.From, win.To)
	headers, err := s.repo.SaleHeaders(ctx, startUTC, endUTC, win.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return []DailyRow{}, nil
	}
	ids := make([]int64, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}
	gross, err := s.repo.GrossBySale(ctx, ids)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.PaidBySale(ctx, ids)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailyRow)
	for _, h := range headers {
		day := s.clock.LocalDay(h.Date)
		row, ok := byDay[day]
		if !ok {
			row = &DailyRow{Date: day}
			byDay[day] = row
		}
		g := gross[h.ID]
		p := paid[h.ID]
		row.Gross += g
		row.Paid += p
		if g > p {
			row.Balance += g - p
		}
		row.Count++
	}

	out := make([]DailyRow, 0, len(byDay))
	for _, row := range byDay {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// DayWindow returns the window covering the business day offset days back.
func (s *Service) DayWindow(offsetDays int) (Window, string) {
	day := s.clock.Today().AddDate(0, 0, -offsetDays)
	return Window{From: day, To: day}, day.Format("2006-01-02")
}

// RecentWindow returns the inclusive window for the last n business days.
func (s *Service) RecentWindow(days int) (Window, string, string) {
	to := s.clock.Today()
	from := to.AddDate(0, 0, -(days - 1))
	return Window{From: from, To: to}, from.Format("2006-01-02"), to.Format("2006-01-02")
}

// WarmDaily pre-computes the windows the dashboard hits first: today and the
// last seven days.
func (s *Service) WarmDaily(ctx context.Context) error {
	today, _ := s.DayWindow(0)
	recent, _, _ := s.RecentWindow(7)
	for _, win := range []Window{today, recent} {
		if _, err := s.Cartons(ctx, win); err != nil {
			return err
		}
		if _, err := s.Margin(ctx, win); err != nil {
			return err
		}
		if _, err := s.Daily(ctx, win); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate bumps the cache version so subsequent reads recompute.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
