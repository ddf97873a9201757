package monitor

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Mohanprasath-R/RMS/internal/domain"
)

// record is the mutable state block for one monitored account. It is
// only touched under the registry lock.
type record struct {
	details      domain.AccountDetails
	positions    []domain.Position
	posUpdate    time.Time
	trades       []domain.ClosedTrade
	tradesUpdate time.Time
}

// Registry maps login ids to their account records under a single lock.
// Subscribers mutate it while the poll loop reads it; every accessor
// copies what it needs and releases before doing anything slow.
type Registry struct {
	mu       sync.Mutex
	accounts map[int]*record
	maxSize  int // advisory cap, 0 = unbounded
}

// NewRegistry creates an empty registry. maxSize is advisory: adds above
// it succeed but log a warning.
func NewRegistry(maxSize int) *Registry {
	return &Registry{
		accounts: make(map[int]*record),
		maxSize:  maxSize,
	}
}

// Add inserts an empty record for the login if absent. Idempotent, no
// broker I/O.
func (r *Registry) Add(loginID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[loginID]; ok {
		return
	}
	if r.maxSize > 0 && len(r.accounts) >= r.maxSize {
		slog.Warn("registry above advisory account cap", "cap", r.maxSize, "size", len(r.accounts))
	}
	r.accounts[loginID] = &record{
		details: domain.AccountDetails{LoginID: loginID, Status: domain.StatusActive},
	}
	slog.Info("account added to monitoring", "login_id", loginID, "monitored", len(r.accounts))
}

// Remove deletes the record if present. Idempotent.
func (r *Registry) Remove(loginID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[loginID]; !ok {
		return
	}
	delete(r.accounts, loginID)
	slog.Info("account removed from monitoring", "login_id", loginID, "monitored", len(r.accounts))
}

// Contains reports whether the login is monitored.
func (r *Registry) Contains(loginID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[loginID]
	return ok
}

// Count is the current registry size.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// SnapshotIDs copies the current login ids, sorted ascending. The copy is
// taken under the lock and released immediately so long refreshes never
// block it.
func (r *Registry) SnapshotIDs() []int {
	r.mu.Lock()
	ids := make([]int, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Ints(ids)
	return ids
}

// withRecord runs fn against the login's record under the lock. Returns
// false when the login is no longer monitored. fn must not block.
func (r *Registry) withRecord(loginID int, fn func(*record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[loginID]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// snapshot builds the full wire snapshot for one record. Caller holds
// the registry lock.
func (rec *record) snapshot(now time.Time) domain.AccountSnapshot {
	positions := make([]domain.Position, len(rec.positions))
	copy(positions, rec.positions)
	trades := make([]domain.ClosedTrade, len(rec.trades))
	copy(trades, rec.trades)

	return domain.AccountSnapshot{
		Account:   rec.details.View(),
		Positions: domain.NewPositionsView(rec.details.LoginID, positions, rec.posUpdate),
		Trades:    domain.NewTradesView(rec.details.LoginID, trades, rec.tradesUpdate, now),
	}
}

// Snapshot returns the wire snapshot for one account, or false when the
// login is not monitored.
func (r *Registry) Snapshot(loginID int, now time.Time) (domain.AccountSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[loginID]
	if !ok {
		return domain.AccountSnapshot{}, false
	}
	return rec.snapshot(now), true
}

// SnapshotAll returns wire snapshots for every monitored account.
func (r *Registry) SnapshotAll(now time.Time) map[int]domain.AccountSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make(map[int]domain.AccountSnapshot, len(r.accounts))
	for id, rec := range r.accounts {
		snapshots[id] = rec.snapshot(now)
	}
	return snapshots
}
