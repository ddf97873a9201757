package domain

import (
	"fmt"
	"strings"
)

// AlertLevel classifies how urgent an account's condition is.
type AlertLevel string

const (
	AlertNone     AlertLevel = ""
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Thresholds are the alert boundaries, usually taken from configuration.
type Thresholds struct {
	MarginWarning  float64 // margin level at or below → warning
	MarginCritical float64 // margin level at or below → critical
	MaxLoss        float64 // profit at or below → loss alert
}

// MarginLevel computes the margin level percentage. Zero margin yields 0.
func MarginLevel(equity, margin float64) float64 {
	if margin == 0 {
		return 0
	}
	return equity / margin * 100
}

// FreeMargin is the equity left after margin requirements.
func FreeMargin(equity, margin float64) float64 {
	return equity - margin
}

// CheckMarginAlert classifies a margin level against the thresholds.
func (t Thresholds) CheckMarginAlert(marginLevel float64) AlertLevel {
	switch {
	case marginLevel <= t.MarginCritical:
		return AlertCritical
	case marginLevel <= t.MarginWarning:
		return AlertWarning
	default:
		return AlertNone
	}
}

// CheckLossAlert reports whether profit breaches the loss threshold.
func (t Thresholds) CheckLossAlert(profit float64) bool {
	return profit <= t.MaxLoss
}

// HealthStatus rolls margin and loss checks into one label.
func (t Thresholds) HealthStatus(a AccountDetails) string {
	switch t.CheckMarginAlert(a.MarginLevel) {
	case AlertCritical:
		return "critical"
	case AlertWarning:
		return "warning"
	}
	if t.CheckLossAlert(a.Profit) {
		return "warning"
	}
	return "healthy"
}

// AlertMessage renders the account's active alerts, or "" when healthy.
func (t Thresholds) AlertMessage(a AccountDetails) string {
	var alerts []string

	switch t.CheckMarginAlert(a.MarginLevel) {
	case AlertCritical:
		alerts = append(alerts, fmt.Sprintf("CRITICAL: Account %d margin level at %.2f%%", a.LoginID, a.MarginLevel))
	case AlertWarning:
		alerts = append(alerts, fmt.Sprintf("WARNING: Account %d margin level at %.2f%%", a.LoginID, a.MarginLevel))
	}
	if t.CheckLossAlert(a.Profit) {
		alerts = append(alerts, fmt.Sprintf("WARNING: Account %d loss at %s", a.LoginID, FormatCurrency(a.Profit)))
	}

	return strings.Join(alerts, " | ")
}

// FormatCurrency renders an amount as dollars with two decimals.
func FormatCurrency(amount float64) string {
	if amount < 0 {
		return fmt.Sprintf("-$%.2f", -amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatPercent renders a percentage with two decimals.
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}

// PerformanceMetrics summarizes a closed-trade history.
type PerformanceMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"` // percentage
	TotalProfit   float64 `json:"total_profit"`
	TotalLoss     float64 `json:"total_loss"` // absolute value
	ProfitFactor  float64 `json:"profit_factor"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"` // absolute value
}

// NewPerformanceMetrics computes win/loss statistics over trades.
// Break-even trades count toward the total but neither side.
func NewPerformanceMetrics(trades []ClosedTrade) PerformanceMetrics {
	m := PerformanceMetrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return m
	}

	for _, t := range trades {
		switch {
		case t.Profit > 0:
			m.WinningTrades++
			m.TotalProfit += t.Profit
		case t.Profit < 0:
			m.LosingTrades++
			m.TotalLoss += -t.Profit
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	if m.TotalLoss > 0 {
		m.ProfitFactor = m.TotalProfit / m.TotalLoss
	}
	if m.WinningTrades > 0 {
		m.AverageWin = m.TotalProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.TotalLoss / float64(m.LosingTrades)
	}
	return m
}
