package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

// exportDocument is the shape of one JSON export.
type exportDocument struct {
	Timestamp string                           `json:"timestamp"`
	Stats     domain.EngineStats               `json:"stats"`
	Accounts  map[int]domain.AccountSnapshot   `json:"accounts"`
	Exposure  map[string]domain.SymbolExposure `json:"exposure"`
}

// Export writes the full monitoring state to path as one JSON document:
// stats, every account snapshot (trades truncated to the snapshot
// limit) and the per-symbol exposure.
func (e *Engine) Export(path string) error {
	doc := exportDocument{
		Timestamp: time.Now().Format(time.RFC3339),
		Stats:     e.Stats(),
		Accounts:  e.SnapshotAll(),
		Exposure:  e.ExposureBySymbol(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("monitor.Export: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("monitor.Export: write %q: %w", path, err)
	}

	slog.Info("monitoring data exported", "path", path, "accounts", len(doc.Accounts))
	return nil
}
