package monitor

import (
	"sort"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

// Aggregation queries copy the registry data they need under the lock,
// release it, and compute on the copy. Results are point-in-time
// consistent; a later tick may invalidate them.

// accountPositions is the per-account slice the aggregator works on.
type accountPositions struct {
	loginID   int
	positions []domain.Position
}

// copyPositions snapshots every account's positions, ordered by
// ascending login id.
func (r *Registry) copyPositions() []accountPositions {
	r.mu.Lock()
	out := make([]accountPositions, 0, len(r.accounts))
	for id, rec := range r.accounts {
		positions := make([]domain.Position, len(rec.positions))
		copy(positions, rec.positions)
		out = append(out, accountPositions{loginID: id, positions: positions})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].loginID < out[j].loginID })
	return out
}

// PositionsBySymbol returns every open position in the given symbol
// across the fleet, grouped by ascending login id and stable within an
// account.
func (e *Engine) PositionsBySymbol(symbol string) []domain.SymbolPosition {
	accounts := e.registry.copyPositions()

	var out []domain.SymbolPosition
	for _, acc := range accounts {
		for _, p := range acc.positions {
			if p.Symbol != symbol {
				continue
			}
			out = append(out, domain.SymbolPosition{LoginID: acc.loginID, Position: p})
		}
	}
	return out
}

// ExposureBySymbol nets the fleet's positions per symbol: buys add
// volume, sells subtract. Accounts counts contributors, Positions the
// total position count.
func (e *Engine) ExposureBySymbol() map[string]domain.SymbolExposure {
	accounts := e.registry.copyPositions()

	exposure := make(map[string]domain.SymbolExposure)
	for _, acc := range accounts {
		contributed := make(map[string]bool)
		for _, p := range acc.positions {
			x := exposure[p.Symbol]
			x.Volume += p.SignedVolume()
			x.Positions++
			if !contributed[p.Symbol] {
				x.Accounts++
				contributed[p.Symbol] = true
			}
			exposure[p.Symbol] = x
		}
	}
	return exposure
}

// FleetSummary totals balance, equity, margin and profit across the
// fleet, with averages over the account count. Empty registry → zeros.
func (e *Engine) FleetSummary() domain.FleetSummary {
	e.registry.mu.Lock()
	details := make([]domain.AccountDetails, 0, len(e.registry.accounts))
	counts := make(map[int]int, len(e.registry.accounts))
	for id, rec := range e.registry.accounts {
		details = append(details, rec.details)
		counts[id] = len(rec.positions)
	}
	e.registry.mu.Unlock()

	return domain.NewFleetSummary(details, counts)
}
