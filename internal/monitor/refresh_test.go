package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

func TestNormalizeDetailsLowercaseKeys(t *testing.T) {
	d := normalizeDetails(1001, map[string]any{
		"balance":      500.0,
		"equity":       520.0,
		"margin":       100.0,
		"free_margin":  420.0,
		"margin_level": 520.0,
		"profit":       20.0,
		"group":        "demo\\standard",
		"leverage":     100.0,
	})

	assert.Equal(t, 1001, d.LoginID)
	assert.InDelta(t, 500.0, d.Balance, 1e-9)
	assert.InDelta(t, 420.0, d.FreeMargin, 1e-9)
	assert.InDelta(t, 520.0, d.MarginLevel, 1e-9)
	assert.Equal(t, "demo\\standard", d.Group)
	assert.Equal(t, 100, d.Leverage)
	assert.Equal(t, domain.StatusActive, d.Status)
}

func TestNormalizeDetailsCapitalizedAndDerived(t *testing.T) {
	d := normalizeDetails(1001, map[string]any{
		"Balance": 500.0,
		"Equity":  520.0,
		"Margin":  100.0,
	})

	assert.InDelta(t, 500.0, d.Balance, 1e-9)
	// missing free margin and margin level are derived
	assert.InDelta(t, 420.0, d.FreeMargin, 1e-9)
	assert.InDelta(t, 520.0, d.MarginLevel, 1e-9)
}

func TestNormalizePositionsKeyCasing(t *testing.T) {
	positions := normalizePositions([]map[string]any{
		{"Symbol": "EURUSD", "Vol": 1.0, "Type": float64(0), "Ticket": 1},
		{"symbol": "GBPUSD", "volume": 2.0, "type": "Sell"},
	})

	require.Len(t, positions, 2)
	assert.Equal(t, "EURUSD", positions[0].Symbol)
	assert.InDelta(t, 1.0, positions[0].Volume, 1e-9)
	assert.Equal(t, domain.SideBuy, positions[0].Side)
	assert.Equal(t, 1, positions[0].Raw["Ticket"])

	assert.Equal(t, "GBPUSD", positions[1].Symbol)
	assert.InDelta(t, 2.0, positions[1].Volume, 1e-9)
	assert.Equal(t, domain.SideSell, positions[1].Side)
}

func TestNormalizeTradesCloseTimeShapes(t *testing.T) {
	unix := time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC).Unix()

	trades := normalizeTrades([]map[string]any{
		{"Symbol": "EURUSD", "Vol": 0.1, "Profit": 5.0, "Time": float64(unix)},
		{"symbol": "GBPUSD", "volume": 0.2, "close_time": "2025-06-12T10:00:00Z"},
		{"symbol": "USDJPY", "volume": 0.3}, // no close time
	})

	require.Len(t, trades, 3)
	assert.Equal(t, unix, trades[0].ClosedAt.Unix())
	assert.Equal(t, unix, trades[1].ClosedAt.Unix())
	assert.True(t, trades[2].ClosedAt.IsZero())
}

func TestRegistrySnapshotIDsSortedCopy(t *testing.T) {
	r := NewRegistry(0)
	r.Add(30)
	r.Add(10)
	r.Add(20)

	ids := r.SnapshotIDs()
	assert.Equal(t, []int{10, 20, 30}, ids)

	// the copy is detached from later mutations
	r.Remove(20)
	assert.Equal(t, []int{10, 20, 30}, ids)
	assert.Equal(t, []int{10, 30}, r.SnapshotIDs())
}

func TestRegistryWithRecordMissing(t *testing.T) {
	r := NewRegistry(0)
	called := false
	ok := r.withRecord(404, func(*record) { called = true })
	assert.False(t, ok)
	assert.False(t, called)
}
