package reports

import "time"

// Window selects an inclusive business-day range for a summary. Zero bounds
// leave that side open.
type Window struct {
	From           time.Time
	To             time.Time
	IncludeDeleted bool
}

// CartonsTotals aggregates the whole window.
type CartonsTotals struct {
	Cartons int     `json:"cartons"`
	Revenue float64 `json:"revenue"`
	Bottles int     `json:"bottles"`
}

// CartonsRow is the per-size slice of a cartons summary. Bottles stays nil
// when the packing table does not know the label.
type CartonsRow struct {
	BottleSizeID   *int64  `json:"bottle_size_id"`
	Label          string  `json:"label"`
	Cartons        int     `json:"cartons"`
	Revenue        float64 `json:"revenue"`
	UnitsPerCarton *int    `json:"units_per_carton"`
	Bottles        *int    `json:"bottles"`
}

// CartonsSummary reports cartons and revenue sold per bottle size.
type CartonsSummary struct {
	Totals CartonsTotals `json:"totals"`
	BySize []CartonsRow  `json:"by_size"`
}

// MarginBreakdown splits combined cost of goods sold into the per-item
// snapshots and the standalone purchase expenses.
type MarginBreakdown struct {
	CogsSales float64 `json:"cogs_sales"`
	Purchases float64 `json:"purchases"`
}

// MarginTotals aggregates the whole window. COGS is combined; GM is the
// gross margin percentage, zero when there are no sales.
type MarginTotals struct {
	Sales     float64         `json:"sales"`
	COGS      float64         `json:"cogs"`
	Gross     float64         `json:"gross"`
	GM        float64         `json:"gm"`
	Breakdown MarginBreakdown `json:"breakdown"`
}

// MarginRow is the per-size slice of a margin summary; its COGS is sales-side
// only since purchase expenses are not attributable to a size.
type MarginRow struct {
	BottleSizeID *int64  `json:"bottle_size_id"`
	Label        string  `json:"label"`
	Cartons      int     `json:"cartons"`
	Sales        float64 `json:"sales"`
	COGS         float64 `json:"cogs"`
	Gross        float64 `json:"gross"`
	GM           float64 `json:"gm"`
}

// MarginSummary reports sales, cost of goods sold and gross margin.
type MarginSummary struct {
	Totals   MarginTotals `json:"totals"`
	BySize   []MarginRow  `json:"by_size"`
	DateFrom *string      `json:"date_from"`
	DateTo   *string      `json:"date_to"`
}

// DailyRow aggregates one business-calendar day.
type DailyRow struct {
	Date    string  `json:"date"`
	Gross   float64 `json:"gross"`
	Paid    float64 `json:"paid"`
	Balance float64 `json:"balance"`
	Count   int     `json:"count"`
}
