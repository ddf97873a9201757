// Package console renders snapshots, exposure and stats for the CLI's
// one-shot query commands.
package console

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

// Console writes formatted monitor output.
type Console struct {
	out io.Writer
}

// New creates a console writing to stdout.
func New() *Console {
	return &Console{out: os.Stdout}
}

// NewWriter creates a console for tests.
func NewWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintSnapshots renders the fleet snapshot as one row per account.
func (c *Console) PrintSnapshots(snapshots map[int]domain.AccountSnapshot) {
	fmt.Fprintf(c.out, "=== All Accounts Snapshot (%d accounts) ===\n", len(snapshots))
	if len(snapshots) == 0 {
		return
	}

	ids := make([]int, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	table := tablewriter.NewWriter(c.out)
	table.Header("Login", "Balance", "Equity", "Margin", "Free", "Level", "Profit", "Pos", "Status")

	for _, id := range ids {
		s := snapshots[id]
		a := s.Account
		table.Append(
			fmt.Sprintf("%d", a.LoginID),
			domain.FormatCurrency(a.Balance),
			domain.FormatCurrency(a.Equity),
			domain.FormatCurrency(a.Margin),
			domain.FormatCurrency(a.FreeMargin),
			domain.FormatPercent(a.MarginLevel),
			domain.FormatCurrency(a.Profit),
			fmt.Sprintf("%d", s.Positions.PositionCount),
			string(a.Status),
		)
	}
	table.Render()
}

// PrintSnapshot renders one account in long form.
func (c *Console) PrintSnapshot(s domain.AccountSnapshot) {
	a := s.Account
	fmt.Fprintf(c.out, "=== Account %d Snapshot ===\n", a.LoginID)
	fmt.Fprintf(c.out, "  Balance:      %s\n", domain.FormatCurrency(a.Balance))
	fmt.Fprintf(c.out, "  Equity:       %s\n", domain.FormatCurrency(a.Equity))
	fmt.Fprintf(c.out, "  Margin:       %s\n", domain.FormatCurrency(a.Margin))
	fmt.Fprintf(c.out, "  Free Margin:  %s\n", domain.FormatCurrency(a.FreeMargin))
	fmt.Fprintf(c.out, "  Margin Level: %s\n", domain.FormatPercent(a.MarginLevel))
	fmt.Fprintf(c.out, "  Profit:       %s\n", domain.FormatCurrency(a.Profit))
	fmt.Fprintf(c.out, "  Group:        %s\n", orNA(a.Group))
	fmt.Fprintf(c.out, "  Leverage:     1:%d\n", a.Leverage)
	fmt.Fprintf(c.out, "  Positions:    %d\n", s.Positions.PositionCount)
	fmt.Fprintf(c.out, "  Trades:       %d\n", s.Trades.TradeCount)
	fmt.Fprintf(c.out, "  Status:       %s\n", a.Status)
}

// PrintExposure renders the per-symbol net exposure table.
func (c *Console) PrintExposure(exposure map[string]domain.SymbolExposure) {
	fmt.Fprintf(c.out, "=== Total Symbol Exposure ===\n")
	if len(exposure) == 0 {
		fmt.Fprintln(c.out, "no open positions")
		return
	}

	symbols := make([]string, 0, len(exposure))
	for s := range exposure {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Net Volume", "Accounts", "Positions")
	for _, sym := range symbols {
		x := exposure[sym]
		table.Append(sym, fmt.Sprintf("%.2f", x.Volume), fmt.Sprintf("%d", x.Accounts), fmt.Sprintf("%d", x.Positions))
	}
	table.Render()
}

// PrintPositions renders every fleet position in one symbol.
func (c *Console) PrintPositions(symbol string, positions []domain.SymbolPosition) {
	fmt.Fprintf(c.out, "=== Positions for %s ===\n", symbol)
	fmt.Fprintf(c.out, "Total positions: %d\n", len(positions))
	if len(positions) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Login", "Side", "Volume", "Profit")
	for _, p := range positions {
		table.Append(
			fmt.Sprintf("%d", p.LoginID),
			string(p.Side),
			fmt.Sprintf("%.2f", p.Volume),
			domain.FormatCurrency(p.Profit),
		)
	}
	table.Render()
}

// PrintStats renders the engine counters.
func (c *Console) PrintStats(stats domain.EngineStats) {
	fmt.Fprintf(c.out, "=== RMS Statistics ===\n")
	fmt.Fprintf(c.out, "Running:            %t\n", stats.Running)
	fmt.Fprintf(c.out, "Update Interval:    %.0fs\n", stats.UpdateInterval)
	fmt.Fprintf(c.out, "Monitored Accounts: %d\n", stats.MonitoredCount)
	fmt.Fprintf(c.out, "Total Updates:      %d\n", stats.TotalUpdates)
	fmt.Fprintf(c.out, "Errors:             %d\n", stats.Errors)
	if stats.LastUpdate != nil {
		fmt.Fprintf(c.out, "Last Update:        %s\n", stats.LastUpdate.Format(time.RFC3339))
	} else {
		fmt.Fprintf(c.out, "Last Update:        never\n")
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
