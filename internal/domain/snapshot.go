package domain

import "time"

// snapshotTradeLimit bounds how many closed trades a snapshot carries.
// The full history stays on the record; only the wire shape is truncated.
const snapshotTradeLimit = 100

// AccountView is the wire shape of account details inside frames and exports.
type AccountView struct {
	LoginID     int        `json:"login_id"`
	Balance     float64    `json:"balance"`
	Equity      float64    `json:"equity"`
	Margin      float64    `json:"margin"`
	FreeMargin  float64    `json:"free_margin"`
	MarginLevel float64    `json:"margin_level"`
	Profit      float64    `json:"profit"`
	Group       string     `json:"group"`
	Leverage    int        `json:"leverage"`
	Status      Status     `json:"status"`
	LastUpdate  *time.Time `json:"last_update"`
}

// View converts the details into their wire shape.
func (d AccountDetails) View() AccountView {
	return AccountView{
		LoginID:     d.LoginID,
		Balance:     d.Balance,
		Equity:      d.Equity,
		Margin:      d.Margin,
		FreeMargin:  d.FreeMargin,
		MarginLevel: d.MarginLevel,
		Profit:      d.Profit,
		Group:       d.Group,
		Leverage:    d.Leverage,
		Status:      d.Status,
		LastUpdate:  timePtr(d.LastUpdate),
	}
}

// PositionsView is the wire shape of an account's open positions.
type PositionsView struct {
	LoginID       int        `json:"login_id"`
	Positions     []Position `json:"positions"`
	PositionCount int        `json:"position_count"`
	Symbols       []string   `json:"symbols"`
	LastUpdate    *time.Time `json:"last_update"`
}

// NewPositionsView builds the wire shape for a positions slice.
func NewPositionsView(loginID int, positions []Position, lastUpdate time.Time) PositionsView {
	seen := make(map[string]struct{}, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		symbols = append(symbols, p.Symbol)
	}
	return PositionsView{
		LoginID:       loginID,
		Positions:     positions,
		PositionCount: len(positions),
		Symbols:       symbols,
		LastUpdate:    timePtr(lastUpdate),
	}
}

// TradesView is the wire shape of an account's closed-trade history.
type TradesView struct {
	LoginID    int           `json:"login_id"`
	TradeCount int           `json:"trade_count"`
	Trades     []ClosedTrade `json:"trades"`
	DailyStats DailyStats    `json:"daily_stats"`
	LastUpdate *time.Time    `json:"last_update"`
}

// NewTradesView builds the wire shape for a trade history, truncated to
// the first snapshotTradeLimit entries in the order given; the trades are
// not re-sorted. TradeCount and DailyStats cover the full history.
func NewTradesView(loginID int, trades []ClosedTrade, lastUpdate, now time.Time) TradesView {
	limited := trades
	if len(limited) > snapshotTradeLimit {
		limited = limited[:snapshotTradeLimit]
	}
	return TradesView{
		LoginID:    loginID,
		TradeCount: len(trades),
		Trades:     limited,
		DailyStats: NewDailyStats(trades, now),
		LastUpdate: timePtr(lastUpdate),
	}
}

// TradesSummary is the lightweight trade digest carried in update frames.
type TradesSummary struct {
	TradeCount int        `json:"trade_count"`
	LastUpdate *time.Time `json:"last_update"`
}

// AccountSnapshot bundles everything known about one account.
type AccountSnapshot struct {
	Account   AccountView   `json:"account"`
	Positions PositionsView `json:"positions"`
	Trades    TradesView    `json:"trades"`
}

// AccountUpdate is the per-account element of a tick's update frame.
type AccountUpdate struct {
	Account       AccountView   `json:"account"`
	Positions     PositionsView `json:"positions"`
	TradesSummary TradesSummary `json:"trades_summary"`
}

// DailyStats summarizes the current day's closed trades.
type DailyStats struct {
	TradeCount  int     `json:"trade_count"`
	TotalVolume float64 `json:"total_volume"`
	TotalProfit float64 `json:"total_profit"`
	Date        string  `json:"date"`
}

// NewDailyStats aggregates trades whose close time falls on now's date.
// Trades without a close timestamp are skipped.
func NewDailyStats(trades []ClosedTrade, now time.Time) DailyStats {
	y, m, d := now.Date()
	stats := DailyStats{Date: now.Format("2006-01-02")}
	for _, t := range trades {
		if t.ClosedAt.IsZero() {
			continue
		}
		ty, tm, td := t.ClosedAt.Date()
		if ty != y || tm != m || td != d {
			continue
		}
		stats.TradeCount++
		stats.TotalVolume += t.Volume
		stats.TotalProfit += t.Profit
	}
	return stats
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
