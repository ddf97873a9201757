package console_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mohanprasath-R/RMS/internal/adapters/console"
	"github.com/Mohanprasath-R/RMS/internal/domain"
)

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	c := console.NewWriter(&buf)

	c.PrintSnapshot(domain.AccountSnapshot{
		Account: domain.AccountView{
			LoginID: 1001, Balance: 500, Equity: 520, Margin: 100,
			FreeMargin: 420, MarginLevel: 520, Profit: 20,
			Leverage: 100, Status: domain.StatusActive,
		},
		Positions: domain.PositionsView{PositionCount: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "Account 1001")
	assert.Contains(t, out, "$500.00")
	assert.Contains(t, out, "520.00%")
	assert.Contains(t, out, "1:100")
	assert.Contains(t, out, "active")
}

func TestPrintExposure(t *testing.T) {
	var buf bytes.Buffer
	c := console.NewWriter(&buf)

	c.PrintExposure(map[string]domain.SymbolExposure{
		"EURUSD": {Volume: 0.6, Accounts: 1, Positions: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "0.60")

	buf.Reset()
	c.PrintExposure(nil)
	assert.Contains(t, buf.String(), "no open positions")
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	c := console.NewWriter(&buf)

	now := time.Now()
	c.PrintStats(domain.EngineStats{
		TotalUpdates: 12, Errors: 1, MonitoredCount: 3,
		Running: true, UpdateInterval: 5, LastUpdate: &now,
	})

	out := buf.String()
	assert.Contains(t, out, "Running:            true")
	assert.Contains(t, out, "Total Updates:      12")
	assert.Contains(t, out, "Monitored Accounts: 3")

	buf.Reset()
	c.PrintStats(domain.EngineStats{})
	assert.Contains(t, buf.String(), "never")
}
