package renderer

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/etnz/valuation"
)

// SnapshotOptions holds configuration for rendering a snapshot.
type SnapshotOptions struct {
	SortBy    string // SortBy is a position column, see valuation.PositionColumns.
	Direction valuation.Direction
}

type snapshotView struct {
	*valuation.Snapshot
	Rows []valuation.Position
}

// RenderSnapshot renders the open positions and the totals of s to a
// markdown string. Cash balances are listed when there are several
// currencies.
func RenderSnapshot(s *valuation.Snapshot, opts SnapshotOptions) string {
	rows := s.PositionList()
	valuation.SortPositions(rows, opts.SortBy, opts.Direction)

	partials := map[string]string{
		"snapshot_positions": "snapshot_positions.md",
		"snapshot_totals":    "snapshot_totals.md",
	}
	var b strings.Builder
	b.WriteString(renderTemplate("snapshot", "snapshot.md", partials, snapshotView{Snapshot: s, Rows: rows}))

	ConditionalBlock(&b, func(w io.Writer) bool {
		if len(s.CashBalances) < 2 {
			return false
		}
		fmt.Fprintf(w, "\n## Cash balances\n\n")
		fmt.Fprintln(w, "| Currency | Balance |")
		fmt.Fprintln(w, "|:---|---:|")
		for _, symbol := range slices.Sorted(maps.Keys(s.CashBalances)) {
			fmt.Fprintf(w, "| %s | %s |\n", symbol, money(s.CashBalances[symbol]))
		}
		return true
	})
	return b.String()
}
