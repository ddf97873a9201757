package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

// refreshResult carries one account's tick outcome back to the engine.
type refreshResult struct {
	frame  *domain.AccountUpdate // nil when details were unavailable or failed
	errors int64
}

// refreshAccount performs the three sub-fetches for one account: details
// and positions every tick, closed trades every fifth tick. Sub-fetch
// failures are independent; a failed details fetch does not stop the
// positions fetch. Broker RPCs run without the registry lock; results
// are applied to the record afterwards under it.
func (e *Engine) refreshAccount(ctx context.Context, loginID int, tick int64) refreshResult {
	var res refreshResult
	now := time.Now()
	logged := false
	fail := func(op string, err error) {
		res.errors++
		if !logged {
			slog.Error("account refresh error", "login_id", loginID, "op", op, "err", err)
			logged = true
		}
	}

	// 1. Account details. An empty response is a transport-level failure
	// too: the platform has no data for a login we are monitoring.
	detailsRaw, detailsErr := e.broker.GetAccountDetails(ctx, loginID)
	if detailsErr != nil {
		fail("details", detailsErr)
	} else if len(detailsRaw) == 0 {
		res.errors++
		if !logged {
			slog.Warn("account unavailable on platform", "login_id", loginID)
			logged = true
		}
	}

	// 2. Open positions
	positionsRaw, posErr := e.broker.GetOpenPositions(ctx, loginID)
	if posErr != nil {
		fail("positions", posErr)
	}

	// 3. Closed trades, on the slow cadence
	fetchTrades := tick%tradeRefreshTicks == 0
	var tradesRaw []map[string]any
	var tradesErr error
	if fetchTrades {
		tradesRaw, tradesErr = e.broker.GetClosedTrades(ctx, loginID, now.Add(-e.cfg.HistoryWindow))
		if tradesErr != nil {
			fail("trades", tradesErr)
		}
	}

	ok := e.registry.withRecord(loginID, func(rec *record) {
		switch {
		case detailsErr != nil:
			// keep previous field values
			rec.details.Status = domain.StatusError
		case len(detailsRaw) == 0:
			rec.details.Status = domain.StatusUnavailable
		default:
			rec.details = normalizeDetails(loginID, detailsRaw)
			rec.details.LastUpdate = now
		}

		if posErr == nil {
			rec.positions = normalizePositions(positionsRaw)
			rec.posUpdate = now
		}

		if fetchTrades && tradesErr == nil {
			rec.trades = normalizeTrades(tradesRaw)
			rec.tradesUpdate = now
		}

		if rec.details.Status == domain.StatusActive {
			positions := make([]domain.Position, len(rec.positions))
			copy(positions, rec.positions)
			res.frame = &domain.AccountUpdate{
				Account:   rec.details.View(),
				Positions: domain.NewPositionsView(loginID, positions, rec.posUpdate),
				TradesSummary: domain.TradesSummary{
					TradeCount: len(rec.trades),
					LastUpdate: tradesUpdatePtr(rec.tradesUpdate),
				},
			}
		}
	})
	if !ok {
		// removed mid-tick: no frame, no record mutation
		res.frame = nil
	}
	return res
}

func tradesUpdatePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// normalizeDetails converts a broker details payload into typed details.
// Bridges disagree on key casing, so every field probes both variants.
// A missing margin level is derived from equity and margin.
func normalizeDetails(loginID int, m map[string]any) domain.AccountDetails {
	d := domain.AccountDetails{
		LoginID:  loginID,
		Balance:  floatField(m, "balance", "Balance"),
		Equity:   floatField(m, "equity", "Equity"),
		Margin:   floatField(m, "margin", "Margin"),
		Profit:   floatField(m, "profit", "Profit"),
		Group:    stringField(m, "group", "Group"),
		Leverage: intField(m, "leverage", "Leverage"),
		Status:   domain.StatusActive,
	}

	if _, ok := firstField(m, "free_margin", "FreeMargin", "MarginFree"); ok {
		d.FreeMargin = floatField(m, "free_margin", "FreeMargin", "MarginFree")
	} else {
		d.FreeMargin = domain.FreeMargin(d.Equity, d.Margin)
	}
	if _, ok := firstField(m, "margin_level", "MarginLevel"); ok {
		d.MarginLevel = floatField(m, "margin_level", "MarginLevel")
	} else {
		d.MarginLevel = domain.MarginLevel(d.Equity, d.Margin)
	}
	return d
}

// normalizePositions converts broker position payloads, keeping the raw
// maps for opaque fields.
func normalizePositions(raw []map[string]any) []domain.Position {
	positions := make([]domain.Position, 0, len(raw))
	for _, m := range raw {
		side, _ := firstField(m, "Type", "type")
		positions = append(positions, domain.Position{
			Symbol: stringField(m, "Symbol", "symbol"),
			Volume: floatField(m, "Vol", "volume", "Volume"),
			Side:   domain.SideOf(side),
			Profit: floatField(m, "Profit", "profit"),
			Raw:    m,
		})
	}
	return positions
}

// normalizeTrades converts broker closed-trade payloads.
func normalizeTrades(raw []map[string]any) []domain.ClosedTrade {
	trades := make([]domain.ClosedTrade, 0, len(raw))
	for _, m := range raw {
		trades = append(trades, domain.ClosedTrade{
			Symbol:   stringField(m, "Symbol", "symbol"),
			Volume:   floatField(m, "Vol", "volume", "Volume"),
			Profit:   floatField(m, "Profit", "profit"),
			ClosedAt: timeField(m, "Time", "time", "close_time"),
			Raw:      m,
		})
	}
	return trades
}

// firstField returns the first present key's value.
func firstField(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func floatField(m map[string]any, keys ...string) float64 {
	v, ok := firstField(m, keys...)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func intField(m map[string]any, keys ...string) int {
	return int(floatField(m, keys...))
}

func stringField(m map[string]any, keys ...string) string {
	v, ok := firstField(m, keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// timeField accepts RFC 3339 strings and unix-second numbers, the two
// shapes bridges emit for close times.
func timeField(m map[string]any, keys ...string) time.Time {
	v, ok := firstField(m, keys...)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
		return time.Time{}
	case float64:
		if t <= 0 {
			return time.Time{}
		}
		return time.Unix(int64(t), 0)
	case int64:
		if t <= 0 {
			return time.Time{}
		}
		return time.Unix(t, 0)
	default:
		return time.Time{}
	}
}
