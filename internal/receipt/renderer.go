package receipt

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aquatrack/aquatrack/internal/sales"
	"github.com/aquatrack/aquatrack/internal/shared"
)

// Receipt geometry for an 80mm thermal roll: 48 characters per line, item
// table split as ITEM | QTY | EACH | TOTAL.
const (
	lineWidth = 48
	itemW     = 26
	qtyW      = 5
	eachW     = 8
	totalW    = 9
)

// Business identifies the company printed on receipt headers.
type Business struct {
	Name         string
	ContactLines []string
	Footer       string
}

// Renderer produces plain-text till receipts from fully loaded sales.
// It never mutates ledger state.
type Renderer struct {
	business Business
	clock    *shared.Clock
	printer  *message.Printer
}

// NewRenderer constructs a Renderer.
func NewRenderer(business Business, clock *shared.Clock) *Renderer {
	if business.Footer == "" {
		business.Footer = "Thank you for your purchase!"
	}
	return &Renderer{
		business: business,
		clock:    clock,
		printer:  message.NewPrinter(language.English),
	}
}

func (r *Renderer) money(v float64) string {
	return r.printer.Sprintf("%.2f", v)
}

func center(s string) string {
	if len(s) >= lineWidth {
		return s
	}
	pad := (lineWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func rule() string {
	return strings.Repeat("-", lineWidth)
}

// wrap splits text into word-wrapped lines no wider than width.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{"-"}
	}
	var lines []string
	cur := ""
	for _, w := range words {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if len(candidate) <= width {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		cur = w
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// labelValue renders "Label : value" wrapping continuation lines under the
// value column.
func labelValue(label, value string) []string {
	prefix := label + " : "
	inner := lineWidth - len(prefix)
	if inner < 1 {
		inner = 1
	}
	parts := wrap(value, inner)
	out := []string{prefix + parts[0]}
	indent := strings.Repeat(" ", len(prefix))
	for _, extra := range parts[1:] {
		out = append(out, indent+extra)
	}
	return out
}

func padRight(s string, width int) string {
	if len(s) > width {
		s = s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func itemRow(label string, qty string, each string, total string) string {
	return padRight(label, itemW) + padLeft(qty, qtyW) + padLeft(each, eachW) + padLeft(total, totalW)
}

// rightValue shows a label spanning the first three columns and a
// right-aligned value in the TOTAL column.
func rightValue(label, value string) string {
	left := itemW + qtyW + eachW
	return padRight(label, left) + padLeft(value, totalW)
}

// Render lays out the full receipt for a sale. servedBy may be empty.
func (r *Renderer) Render(sale sales.Sale, servedBy string) string {
	var b strings.Builder
	write := func(line string) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	write(center(r.business.Name))
	for _, line := range r.business.ContactLines {
		if line != "" {
			write(center(line))
		}
	}
	write("")

	write("Receipt : " + sale.ReceiptNumber)
	write("Date    : " + sale.Date.In(r.clock.Location()).Format("2006-01-02 15:04:05"))
	if sale.SaleType != "" {
		write("Type    : " + sale.SaleType)
	}
	customer := "-"
	if sale.CustomerName != nil && strings.TrimSpace(*sale.CustomerName) != "" {
		customer = strings.TrimSpace(*sale.CustomerName)
	}
	for _, line := range labelValue("Customer", customer) {
		write(line)
	}
	write("")

	write(itemRow("ITEM", "QTY", "EACH", "TOTAL"))
	write(rule())

	totalQty := 0
	for _, it := range sale.Items {
		label := it.BottleSizeLabel
		if label == "" {
			label = "Item"
		}
		totalQty += it.Quantity
		lines := wrap(label, itemW)
		write(itemRow(lines[0], r.printer.Sprintf("%d", it.Quantity), r.money(it.UnitPrice), r.money(it.TotalPrice)))
		for _, cont := range lines[1:] {
			write(itemRow(cont, "", "", ""))
		}
	}
	write(rule())

	balance := sale.TotalAmount - sale.PaidAmount
	if balance < 0 {
		balance = 0
	}
	write(rightValue("TOTAL", r.money(sale.TotalAmount)))
	write(rightValue("PAID", r.money(sale.PaidAmount)))
	write(rightValue("BALANCE", r.money(balance)))

	if sale.PaymentMethod != nil && *sale.PaymentMethod != "" {
		write(rule())
		for _, line := range labelValue("Method", *sale.PaymentMethod) {
			write(line)
		}
	}

	write(rule())
	write(rightValue("TOTAL ITEMS (QTY)", r.printer.Sprintf("%d", totalQty)))

	if servedBy != "" {
		write(rule())
		for _, line := range labelValue("Served by", servedBy) {
			write(line)
		}
	}

	write(rule())
	write(center(r.business.Footer))
	return b.String()
}
