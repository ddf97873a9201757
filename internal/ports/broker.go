package ports

import (
	"context"
	"time"
)

// BrokerClient is the manager-side adapter to the trading platform.
// Implementations own their transport, credentials and timeouts. The
// monitor treats payloads as loosely-typed maps because bridges disagree
// on key casing; normalization happens at the refresh ingress.
type BrokerClient interface {
	// GetAccountDetails returns the account's financial state, or an
	// empty map when the platform has no data for the login.
	GetAccountDetails(ctx context.Context, loginID int) (map[string]any, error)

	// GetOpenPositions returns the currently open positions for the login.
	GetOpenPositions(ctx context.Context, loginID int) ([]map[string]any, error)

	// GetClosedTrades returns trades closed at or after since.
	GetClosedTrades(ctx context.Context, loginID int, since time.Time) ([]map[string]any, error)

	// Connected reports whether the underlying manager session is live.
	Connected() bool
}
