package renderer

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/valuation/currency"
)

var funcs = template.FuncMap{
	"money": money,
	"qty":   quantity,
	"pct":   percent,
	"date":  func(t time.Time) string { return t.Format(time.DateOnly) },
	"cell":  cell,
}

// money formats c with its symbol, or "-" when c is the neutral zero.
func money(c currency.Currency) string {
	if c.Symbol == "" && c.Value == 0 {
		return "-"
	}
	return c.String()
}

// quantity formats q without trailing zeros.
func quantity(q float64) string { return strconv.FormatFloat(q, 'f', -1, 64) }

// percent formats a ratio, 0.25 being "+25.00%".
func percent(r float64) string {
	s := strconv.FormatFloat(r*100, 'f', 2, 64) + "%"
	if r > 0 {
		s = "+" + s
	}
	return s
}

// cell escapes s for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// ConditionalBlock let you fully write a block and decide at the end to print it or not.
// If the block function returns true, the content is printed to w, otherwise it is discarded.
func ConditionalBlock(w io.Writer, block func(io.Writer) bool) {
	bw := &bytes.Buffer{}
	if block(bw) {
		io.Copy(w, bw)
	}
}
