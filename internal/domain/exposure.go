package domain

import (
	"encoding/json"
	"sort"
)

// SymbolExposure is the fleet-wide net exposure for one symbol.
type SymbolExposure struct {
	// Volume is the sum of signed volumes: buys add, sells subtract.
	Volume float64 `json:"volume"`
	// Accounts is how many accounts hold at least one position in the symbol.
	Accounts int `json:"accounts"`
	// Positions is the total position count across those accounts.
	Positions int `json:"positions"`
}

// SymbolPosition is a position annotated with the account holding it.
type SymbolPosition struct {
	LoginID int
	Position
}

// MarshalJSON adds login_id to the position's flattened object.
func (p SymbolPosition) MarshalJSON() ([]byte, error) {
	raw, err := p.Position.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["login_id"] = p.LoginID
	return json.Marshal(m)
}

// FleetSummary totals account metrics across the monitored fleet.
type FleetSummary struct {
	TotalAccounts  int     `json:"total_accounts"`
	TotalBalance   float64 `json:"total_balance"`
	TotalEquity    float64 `json:"total_equity"`
	TotalMargin    float64 `json:"total_margin"`
	TotalProfit    float64 `json:"total_profit"`
	TotalPositions int     `json:"total_positions"`
	AverageBalance float64 `json:"average_balance"`
	AverageEquity  float64 `json:"average_equity"`
}

// GrossExposure breaks a symbol's volume down by direction, without netting.
type GrossExposure struct {
	TotalVolume   float64 `json:"total_volume"`
	PositionCount int     `json:"position_count"`
	TotalProfit   float64 `json:"total_profit"`
	BuyVolume     float64 `json:"buy_volume"`
	SellVolume    float64 `json:"sell_volume"`
}

// GroupBySymbol groups positions by their symbol, preserving input order
// within each group.
func GroupBySymbol(positions []Position) map[string][]Position {
	grouped := make(map[string][]Position)
	for _, p := range positions {
		grouped[p.Symbol] = append(grouped[p.Symbol], p)
	}
	return grouped
}

// GrossExposureBySymbol computes per-symbol gross volume, split by side.
func GrossExposureBySymbol(positions []Position) map[string]GrossExposure {
	exposure := make(map[string]GrossExposure)
	for _, p := range positions {
		e := exposure[p.Symbol]
		e.TotalVolume += p.Volume
		e.PositionCount++
		e.TotalProfit += p.Profit
		if p.Side == SideSell {
			e.SellVolume += p.Volume
		} else {
			e.BuyVolume += p.Volume
		}
		exposure[p.Symbol] = e
	}
	return exposure
}

// NewFleetSummary totals and averages details across accounts. Position
// counts come from the positionCounts map, keyed by login id.
func NewFleetSummary(accounts []AccountDetails, positionCounts map[int]int) FleetSummary {
	var s FleetSummary
	s.TotalAccounts = len(accounts)
	for _, a := range accounts {
		s.TotalBalance += a.Balance
		s.TotalEquity += a.Equity
		s.TotalMargin += a.Margin
		s.TotalProfit += a.Profit
		s.TotalPositions += positionCounts[a.LoginID]
	}
	if s.TotalAccounts > 0 {
		s.AverageBalance = s.TotalBalance / float64(s.TotalAccounts)
		s.AverageEquity = s.TotalEquity / float64(s.TotalAccounts)
	}
	return s
}

// FilterByStatus keeps accounts whose status matches.
func FilterByStatus(accounts []AccountDetails, status Status) []AccountDetails {
	var out []AccountDetails
	for _, a := range accounts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

// FilterByProfit keeps accounts whose profit lies inside [min, max].
// A nil bound is open.
func FilterByProfit(accounts []AccountDetails, min, max *float64) []AccountDetails {
	var out []AccountDetails
	for _, a := range accounts {
		if min != nil && a.Profit < *min {
			continue
		}
		if max != nil && a.Profit > *max {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AccountMetric selects the value top/bottom rankings sort by.
type AccountMetric func(AccountDetails) float64

// Ranking metrics for TopAccounts and BottomAccounts.
var (
	ByProfit      AccountMetric = func(a AccountDetails) float64 { return a.Profit }
	ByBalance     AccountMetric = func(a AccountDetails) float64 { return a.Balance }
	ByEquity      AccountMetric = func(a AccountDetails) float64 { return a.Equity }
	ByMarginLevel AccountMetric = func(a AccountDetails) float64 { return a.MarginLevel }
)

// TopAccounts returns up to limit accounts sorted descending by metric.
func TopAccounts(accounts []AccountDetails, metric AccountMetric, limit int) []AccountDetails {
	return rankAccounts(accounts, metric, limit, true)
}

// BottomAccounts returns up to limit accounts sorted ascending by metric.
func BottomAccounts(accounts []AccountDetails, metric AccountMetric, limit int) []AccountDetails {
	return rankAccounts(accounts, metric, limit, false)
}

func rankAccounts(accounts []AccountDetails, metric AccountMetric, limit int, desc bool) []AccountDetails {
	sorted := make([]AccountDetails, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return metric(sorted[i]) > metric(sorted[j])
		}
		return metric(sorted[i]) < metric(sorted[j])
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
