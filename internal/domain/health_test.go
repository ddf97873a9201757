package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

var testThresholds = domain.Thresholds{
	MarginWarning:  150.0,
	MarginCritical: 100.0,
	MaxLoss:        -1000.0,
}

func TestMarginLevel(t *testing.T) {
	assert.InDelta(t, 520.0, domain.MarginLevel(520.0, 100.0), 1e-9)
	assert.InDelta(t, 50.0, domain.MarginLevel(100.0, 200.0), 1e-9)
	assert.Equal(t, 0.0, domain.MarginLevel(520.0, 0))
}

func TestFreeMargin(t *testing.T) {
	assert.Equal(t, 420.0, domain.FreeMargin(520.0, 100.0))
	assert.Equal(t, -80.0, domain.FreeMargin(120.0, 200.0))
}

func TestCheckMarginAlert(t *testing.T) {
	assert.Equal(t, domain.AlertCritical, testThresholds.CheckMarginAlert(99.0))
	assert.Equal(t, domain.AlertCritical, testThresholds.CheckMarginAlert(100.0))
	assert.Equal(t, domain.AlertWarning, testThresholds.CheckMarginAlert(150.0))
	assert.Equal(t, domain.AlertNone, testThresholds.CheckMarginAlert(151.0))
}

func TestCheckLossAlert(t *testing.T) {
	assert.True(t, testThresholds.CheckLossAlert(-1000.0))
	assert.True(t, testThresholds.CheckLossAlert(-2500.0))
	assert.False(t, testThresholds.CheckLossAlert(-999.0))
	assert.False(t, testThresholds.CheckLossAlert(50.0))
}

func TestHealthStatus(t *testing.T) {
	healthy := domain.AccountDetails{MarginLevel: 400, Profit: 100}
	marginWarn := domain.AccountDetails{MarginLevel: 140, Profit: 100}
	critical := domain.AccountDetails{MarginLevel: 90, Profit: 100}
	lossWarn := domain.AccountDetails{MarginLevel: 400, Profit: -1500}

	assert.Equal(t, "healthy", testThresholds.HealthStatus(healthy))
	assert.Equal(t, "warning", testThresholds.HealthStatus(marginWarn))
	assert.Equal(t, "critical", testThresholds.HealthStatus(critical))
	assert.Equal(t, "warning", testThresholds.HealthStatus(lossWarn))
}

func TestAlertMessage(t *testing.T) {
	a := domain.AccountDetails{LoginID: 1001, MarginLevel: 90.5, Profit: -2000}
	msg := testThresholds.AlertMessage(a)

	assert.Contains(t, msg, "CRITICAL: Account 1001 margin level at 90.50%")
	assert.Contains(t, msg, "WARNING: Account 1001 loss at -$2000.00")

	assert.Empty(t, testThresholds.AlertMessage(domain.AccountDetails{LoginID: 1, MarginLevel: 500, Profit: 10}))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "$1234.50", domain.FormatCurrency(1234.5))
	assert.Equal(t, "-$99.99", domain.FormatCurrency(-99.99))
	assert.Equal(t, "152.38%", domain.FormatPercent(152.375))
}

func TestNewPerformanceMetrics(t *testing.T) {
	trades := []domain.ClosedTrade{
		{Profit: 100},
		{Profit: 50},
		{Profit: -30},
		{Profit: 0}, // break-even: counted in total only
	}

	m := domain.NewPerformanceMetrics(trades)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.InDelta(t, 150.0, m.TotalProfit, 1e-9)
	assert.InDelta(t, 30.0, m.TotalLoss, 1e-9)
	assert.InDelta(t, 5.0, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 75.0, m.AverageWin, 1e-9)
	assert.InDelta(t, 30.0, m.AverageLoss, 1e-9)
}

func TestNewPerformanceMetricsEmpty(t *testing.T) {
	m := domain.NewPerformanceMetrics(nil)
	assert.Equal(t, 0, m.TotalTrades)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 0.0, m.ProfitFactor)
}
