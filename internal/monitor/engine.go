package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mohanprasath-R/RMS/internal/domain"
	"github.com/Mohanprasath-R/RMS/internal/ports"
)

const (
	// tradeRefreshTicks is the closed-trades cadence: one fetch every
	// N ticks, counting from tick zero.
	tradeRefreshTicks = 5

	// stopTimeout bounds how long Stop waits for the in-flight tick.
	stopTimeout = 10 * time.Second
)

// ErrAlreadyRunning is returned by Start when the engine is running.
var ErrAlreadyRunning = errors.New("monitor: already running")

// Observer receives the frames produced by each completed tick. OnTick
// is called synchronously on the goroutine running the tick (the
// scheduler loop, or the caller of RunOnce); implementations must not
// block the tick (queue or drop instead).
type Observer interface {
	OnTick(frames []domain.AccountUpdate)
}

// Config controls the engine's cadence and limits.
type Config struct {
	UpdateInterval time.Duration
	HistoryWindow  time.Duration // closed-trades lookback
	MaxAccounts    int           // advisory registry cap
}

// Engine is the monitoring core: registry, poll scheduler, aggregator
// and stats. One Engine monitors one broker session.
type Engine struct {
	cfg      Config
	broker   ports.BrokerClient
	registry *Registry
	storage  ports.TickStorage // optional tick-history sink

	obsMu     sync.Mutex
	observers []Observer

	totalUpdates atomic.Int64
	errorCount   atomic.Int64

	mu         sync.Mutex // guards running, stopCh, done, lastUpdate
	running    bool
	stopCh     chan struct{}
	done       chan struct{}
	lastUpdate time.Time
}

// New creates an engine over the given broker session. storage may be
// nil to disable tick-history recording.
func New(cfg Config, broker ports.BrokerClient, storage ports.TickStorage) *Engine {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 5 * time.Second
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 30 * 24 * time.Hour
	}
	return &Engine{
		cfg:      cfg,
		broker:   broker,
		registry: NewRegistry(cfg.MaxAccounts),
		storage:  storage,
	}
}

// AddAccount registers a login for monitoring. Idempotent.
func (e *Engine) AddAccount(loginID int) { e.registry.Add(loginID) }

// RemoveAccount stops monitoring a login. Idempotent; the login appears
// in no frame emitted after this returns.
func (e *Engine) RemoveAccount(loginID int) { e.registry.Remove(loginID) }

// Monitors reports whether the login is currently monitored.
func (e *Engine) Monitors(loginID int) bool { return e.registry.Contains(loginID) }

// MonitoredCount is the current registry size.
func (e *Engine) MonitoredCount() int { return e.registry.Count() }

// AddObserver registers a tick observer. Observers added while running
// start receiving frames on the next tick.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// Start verifies the broker session and launches the poll loop. It
// fails when the engine is already running or the session is down; in
// the failure cases no loop is launched.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	if e.broker == nil || !e.broker.Connected() {
		e.mu.Unlock()
		return fmt.Errorf("monitor.Start: broker manager session is not connected")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	stopCh, done := e.stopCh, e.done
	e.mu.Unlock()

	go e.loop(ctx, stopCh, done)

	slog.Info("monitor started", "interval", e.cfg.UpdateInterval)
	return nil
}

// Stop asks the loop to exit and waits for the in-flight tick, bounded
// by stopTimeout. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		slog.Warn("monitor stop requested but not running")
		return
	}
	e.running = false
	close(e.stopCh)
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		slog.Info("monitor stopped")
	case <-time.After(stopTimeout):
		slog.Warn("monitor stop timed out waiting for in-flight tick", "timeout", stopTimeout)
	}
}

// loop drives ticks at the configured interval. The stop flag is only
// checked between ticks, so shutdown latency is bounded by one tick
// plus the join timeout.
func (e *Engine) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	slog.Info("monitor loop started", "interval", e.cfg.UpdateInterval)

	ticker := time.NewTicker(e.cfg.UpdateInterval)
	defer ticker.Stop()

	e.tick(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			e.markStopped()
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// markStopped flips the running flag when the loop exits on its own
// (context cancellation) rather than through Stop.
func (e *Engine) markStopped() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// RunOnce executes exactly one tick synchronously. Used by the CLI's
// one-shot commands and by tests; Start's loop calls the same procedure.
func (e *Engine) RunOnce(ctx context.Context) {
	e.tick(ctx)
}

// tick refreshes every monitored account, updates the stats, records
// history and fans the update frames out to observers.
func (e *Engine) tick(ctx context.Context) {
	start := time.Now()
	t := e.totalUpdates.Load()
	ids := e.registry.SnapshotIDs()

	frames := make([]domain.AccountUpdate, 0, len(ids))
	var tickErrors int64
	for _, id := range ids {
		res := e.refreshAccount(ctx, id, t)
		tickErrors += res.errors
		if res.frame != nil {
			frames = append(frames, *res.frame)
		}
	}

	e.errorCount.Add(tickErrors)
	e.totalUpdates.Add(1)
	now := time.Now()
	e.mu.Lock()
	e.lastUpdate = now
	e.mu.Unlock()

	if e.storage != nil {
		if err := e.storage.SaveTick(ctx, e.Stats(), e.ExposureBySymbol()); err != nil {
			slog.Warn("tick storage error", "err", err)
		}
	}

	e.notify(frames)

	slog.Debug("tick complete",
		"tick", t,
		"accounts", len(ids),
		"frames", len(frames),
		"errors", tickErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// notify delivers the tick's frames to every observer. A panicking
// observer is counted and logged; it cannot suppress delivery to the
// others.
func (e *Engine) notify(frames []domain.AccountUpdate) {
	e.obsMu.Lock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.obsMu.Unlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.errorCount.Add(1)
					slog.Error("tick observer panicked", "panic", r)
				}
			}()
			o.OnTick(frames)
		}()
	}
}

// Snapshot returns the wire snapshot for one account, or false when the
// login is not monitored.
func (e *Engine) Snapshot(loginID int) (domain.AccountSnapshot, bool) {
	return e.registry.Snapshot(loginID, time.Now())
}

// SnapshotAll returns wire snapshots for the whole fleet.
func (e *Engine) SnapshotAll() map[int]domain.AccountSnapshot {
	return e.registry.SnapshotAll(time.Now())
}

// Stats returns the engine's counter snapshot. total_updates never
// decreases across observations.
func (e *Engine) Stats() domain.EngineStats {
	e.mu.Lock()
	running := e.running
	last := e.lastUpdate
	e.mu.Unlock()

	var lastPtr *time.Time
	if !last.IsZero() {
		lastPtr = &last
	}
	return domain.EngineStats{
		TotalUpdates:   e.totalUpdates.Load(),
		Errors:         e.errorCount.Load(),
		MonitoredCount: e.registry.Count(),
		Running:        running,
		UpdateInterval: e.cfg.UpdateInterval.Seconds(),
		LastUpdate:     lastPtr,
	}
}
