package ports

import (
	"context"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

// TickStorage records the outcome of completed ticks. The engine only
// writes; it never reads history back into its own state.
type TickStorage interface {
	// SaveTick persists one tick summary and the exposure it observed.
	SaveTick(ctx context.Context, stats domain.EngineStats, exposure map[string]domain.SymbolExposure) error

	// Close releases the underlying database cleanly.
	Close() error
}
