package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquatrack/aquatrack/internal/sales"
	"github.com/aquatrack/aquatrack/internal/shared"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)
	clock := shared.NewClockAt(loc, time.Date(2025, 3, 10, 14, 30, 0, 0, loc))
	business := Business{
		Name:         "AquaTrack Waters Ltd",
		ContactLines: []string{"P.O.Box 101-70100, Garissa", "Tel: 0742 252 535"},
	}
	return NewRenderer(business, clock)
}

func sampleSale() sales.Sale {
	customer := "Halima Stores"
	method := "M-Pesa"
	return sales.Sale{
		ID:            1,
		SaleType:      sales.TypeNormal,
		ReceiptNumber: "20250310001",
		Date:          time.Date(2025, 3, 10, 8, 15, 0, 0, time.UTC),
		CustomerName:  &customer,
		TotalAmount:   1500,
		PaidAmount:    1000,
		BalanceDue:    500,
		PaymentMethod: &method,
		Items: []sales.SaleItem{
			{BottleSizeLabel: "500ml", Quantity: 5, UnitPrice: 300, TotalPrice: 1500},
		},
	}
}

func TestRenderLayout(t *testing.T) {
	r := testRenderer(t)

	out := r.Render(sampleSale(), "Amina Yusuf")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	for _, line := range lines {
		require.LessOrEqual(t, len(line), lineWidth, "line %q exceeds the roll width", line)
	}

	require.Contains(t, out, "AquaTrack Waters Ltd")
	require.Contains(t, out, "Receipt : 20250310001")
	// stored UTC timestamp is printed in Nairobi time
	require.Contains(t, out, "Date    : 2025-03-10 11:15:00")
	require.Contains(t, out, "Customer : Halima Stores")
	require.Contains(t, out, "Method : M-Pesa")
	require.Contains(t, out, "Served by : Amina Yusuf")
	require.Contains(t, out, "Thank you for your purchase!")
}

func TestRenderTotalsColumns(t *testing.T) {
	r := testRenderer(t)

	out := r.Render(sampleSale(), "")
	require.Contains(t, out, padLeft("1,500.00", totalW))

	var totalLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "TOTAL ") && strings.HasSuffix(line, "1,500.00") {
			totalLine = line
			break
		}
	}
	require.NotEmpty(t, totalLine)
	require.Len(t, totalLine, lineWidth)
}

func TestRenderWrapsLongNames(t *testing.T) {
	r := testRenderer(t)
	sale := sampleSale()
	long := "A Very Long Customer Name That Cannot Possibly Fit On A Single Receipt Line"
	sale.CustomerName = &long

	out := r.Render(sale, "")
	require.NotContains(t, out, long)
	for _, word := range strings.Fields(long) {
		require.Contains(t, out, word)
	}
	for _, line := range strings.Split(out, "\n") {
		require.LessOrEqual(t, len(line), lineWidth)
	}
}

func TestRenderBalanceFloorsAtZero(t *testing.T) {
	r := testRenderer(t)
	sale := sampleSale()
	sale.PaidAmount = 2000

	out := r.Render(sale, "")
	require.Contains(t, out, padLeft("0.00", totalW))
}

func TestRenderNoCustomer(t *testing.T) {
	r := testRenderer(t)
	sale := sampleSale()
	sale.CustomerName = nil
	sale.PaymentMethod = nil

	out := r.Render(sale, "")
	require.Contains(t, out, "Customer : -")
	require.NotContains(t, out, "Method :")
}
