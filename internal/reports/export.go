package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
)

// WriteCartonsCSV serialises a cartons summary to CSV.
func WriteCartonsCSV(w io.Writer, summary CartonsSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Bottle Size", "Cartons", "Bottles", "Revenue"}); err != nil {
		return err
	}
	for _, row := range summary.BySize {
		bottles := ""
		if row.Bottles != nil {
			bottles = strconv.Itoa(*row.Bottles)
		}
		if err := writer.Write([]string{
			row.Label,
			strconv.Itoa(row.Cartons),
			bottles,
			formatFloat(row.Revenue),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{
		"TOTAL",
		strconv.Itoa(summary.Totals.Cartons),
		strconv.Itoa(summary.Totals.Bottles),
		formatFloat(summary.Totals.Revenue),
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteMarginCSV serialises a margin summary to CSV.
func WriteMarginCSV(w io.Writer, summary MarginSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Bottle Size", "Cartons", "Sales", "COGS", "Gross", "GM %"}); err != nil {
		return err
	}
	for _, row := range summary.BySize {
		if err := writer.Write([]string{
			row.Label,
			strconv.Itoa(row.Cartons),
			formatFloat(row.Sales),
			formatFloat(row.COGS),
			formatFloat(row.Gross),
			formatFloat(row.GM),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{
		"TOTAL", "",
		formatFloat(summary.Totals.Sales),
		formatFloat(summary.Totals.COGS),
		formatFloat(summary.Totals.Gross),
		formatFloat(summary.Totals.GM),
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteDailyCSV emits the per-day sales movement as CSV.
func WriteDailyCSV(w io.Writer, rows []DailyRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", "Gross", "Paid", "Balance", "Sales"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Date,
			formatFloat(row.Gross),
			formatFloat(row.Paid),
			formatFloat(row.Balance),
			strconv.Itoa(row.Count),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// PDFRenderer converts HTML documents to PDF bytes.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Business identifies the company on rendered documents.
type Business struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// RenderSummaryPDF renders the combined sales report to a PDF document.
func RenderSummaryPDF(ctx context.Context, renderer PDFRenderer, business Business, period string, cartons CartonsSummary, margin MarginSummary, daily []DailyRow) ([]byte, error) {
	if renderer == nil {
		return nil, fmt.Errorf("reports: pdf renderer not configured")
	}
	return renderer.RenderHTML(ctx, buildSummaryHTML(business, period, cartons, margin, daily))
}

func buildSummaryHTML(business Business, period string, cartons CartonsSummary, margin MarginSummary, daily []DailyRow) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("body{font-family:sans-serif;margin:24px;}h1{font-size:20px;color:#0B5394;}h2{font-size:15px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}th,td{border:1px solid #ddd;padding:6px;text-align:right;}th{text-align:left;background:#f5f5f5;}section{margin-bottom:24px;}.label{text-align:left;}.contact{color:#555;font-size:11px;}")
	b.WriteString("</style></head><body>")
	b.WriteString(fmt.Sprintf("<h1>%s</h1>", html.EscapeString(business.Name)))
	b.WriteString(fmt.Sprintf("<p class=\"contact\">%s<br>Phone: %s | Email: %s</p>",
		html.EscapeString(business.Address), html.EscapeString(business.Phone), html.EscapeString(business.Email)))
	b.WriteString(fmt.Sprintf("<p class=\"contact\">Report period: %s</p>", html.EscapeString(period)))

	b.WriteString("<section><h2>Cartons by Bottle Size</h2><table><thead><tr><th>Bottle Size</th><th>Cartons</th><th>Bottles</th><th>Revenue</th></tr></thead><tbody>")
	for _, row := range cartons.BySize {
		bottles := "-"
		if row.Bottles != nil {
			bottles = strconv.Itoa(*row.Bottles)
		}
		b.WriteString("<tr><td class=\"label\">")
		b.WriteString(html.EscapeString(row.Label))
		b.WriteString("</td><td>")
		b.WriteString(strconv.Itoa(row.Cartons))
		b.WriteString("</td><td>")
		b.WriteString(bottles)
		b.WriteString("</td><td>")
		b.WriteString(formatFloat(row.Revenue))
		b.WriteString("</td></tr>")
	}
	b.WriteString(fmt.Sprintf("<tr><td class=\"label\"><b>TOTAL</b></td><td><b>%d</b></td><td><b>%d</b></td><td><b>%s</b></td></tr>",
		cartons.Totals.Cartons, cartons.Totals.Bottles, formatFloat(cartons.Totals.Revenue)))
	b.WriteString("</tbody></table></section>")

	b.WriteString("<section><h2>Gross Margin</h2><table><thead><tr><th>Bottle Size</th><th>Sales</th><th>COGS</th><th>Gross</th><th>GM %</th></tr></thead><tbody>")
	for _, row := range margin.BySize {
		b.WriteString("<tr><td class=\"label\">")
		b.WriteString(html.EscapeString(row.Label))
		b.WriteString("</td><td>")
		b.WriteString(formatFloat(row.Sales))
		b.WriteString("</td><td>")
		b.WriteString(formatFloat(row.COGS))
		b.WriteString("</td><td>")
		b.WriteString(formatFloat(row.Gross))
		b.WriteString("</td><td>")
		b.WriteString(formatFloat(row.GM))
		b.WriteString("</td></tr>")
	}
	b.WriteString(fmt.Sprintf("<tr><td class=\"label\"><b>TOTAL</b></td><td><b>%s</b></td><td><b>%s</b></td><td><b>%s</b></td><td><b>%s</b></td></tr>",
		formatFloat(margin.Totals.Sales), formatFloat(margin.Totals.COGS),
		formatFloat(margin.Totals.Gross), formatFloat(margin.Totals.GM)))
	b.WriteString(fmt.Sprintf("<tr><td class=\"label\">of which purchases</td><td></td><td>%s</td><td></td><td></td></tr>",
		formatFloat(margin.Totals.Breakdown.Purchases)))
	b.WriteString("</tbody></table></section>")

	if len(daily) > 0 {
		b.WriteString("<section><h2>Daily Sales</h2><table><thead><tr><th>Date</th><th>Gross</th><th>Paid</th><th>Balance</th><th>Sales</th></tr></thead><tbody>")
		for _, row := range daily {
			b.WriteString("<tr><td class=\"label\">")
			b.WriteString(html.EscapeString(row.Date))
			b.WriteString("</td><td>")
			b.WriteString(formatFloat(row.Gross))
			b.WriteString("</td><td>")
			b.WriteString(formatFloat(row.Paid))
			b.WriteString("</td><td>")
			b.WriteString(formatFloat(row.Balance))
			b.WriteString("</td><td>")
			b.WriteString(strconv.Itoa(row.Count))
			b.WriteString("</td></tr>")
		}
		b.WriteString("</tbody></table></section>")
	}

	b.WriteString("</body></html>")
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
