package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noehblabla33-a11y/frigo/internal/model"
)

// ErrNothingToSync is returned when a sync is requested with no items marked
// purchased. No remote call is made in that case.
var ErrNothingToSync = errors.New("nothing to sync: no items marked purchased")

// ErrItemNotFound is returned when a mutation targets an id that is not in
// the current in-memory list.
var ErrItemNotFound = errors.New("item not found")

// State is the engine's position in a list-load cycle.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
	StateLoadFailed State = "load_failed"
)

// Snapshot is the engine's observable state: the current items plus the
// aggregates derived from them. Items is a copy; mutating it has no effect
// on the engine.
type Snapshot struct {
	State          State                `json:"state"`
	Items          []model.ShoppingItem `json:"items"`
	TotalEstimate  float64              `json:"total_estime"`
	PurchasedCount int                  `json:"purchased_count"`
	RemainingCount int                  `json:"remaining_count"`
	SavedAt        time.Time            `json:"saved_at,omitempty"`
	LastError      string               `json:"last_error,omitempty"`
}

// Gateway is the remote surface the engine needs. *gateway.Client satisfies
// it; tests substitute fakes.
type Gateway interface {
	FetchList(ctx context.Context) (*model.ListSnapshot, error)
	SubmitPurchases(ctx context.Context, purchases []model.PurchaseEntry) (*model.SyncAck, error)
	DeleteItem(ctx context.Context, id int64) (bool, error)
}

// Store is the cache surface the engine needs. *cache.Store satisfies it.
type Store interface {
	ReplaceAll(items []model.ShoppingItem) error
	Upsert(item model.ShoppingItem) error
	DeleteAll() error
	DeletePurchased() (int64, error)
	GetAllOrdered() ([]model.ShoppingItem, error)
	Exists() (bool, error)
	LastSavedAt() (time.Time, error)
}

// Listener receives a Snapshot on every state transition.
type Listener func(Snapshot)

// Engine reconciles the in-memory list, the local cache, and the remote
// fridge service. Reads are cache-first; local mutations are optimistic;
// sync pushes purchases to the server then prunes them.
//
// The engine does not serialize concurrent mutating callers against each
// other; callers serialize per item, or accept last-write-wins.
type Engine struct {
	gw     Gateway
	store  Store
	logger *slog.Logger

	mu             sync.Mutex
	state          State
	items          []model.ShoppingItem
	savedAt        time.Time
	lastErr        string
	totalEstimate  float64
	purchasedCount int
	remainingCount int

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int

	wg sync.WaitGroup
}

// New creates an Engine in the Idle state.
func New(gw Gateway, store Store, logger *slog.Logger) *Engine {
	return &Engine{
		gw:        gw,
		store:     store,
		logger:    logger,
		state:     StateIdle,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener invoked on every state transition. The
// returned func unsubscribes it.
func (e *Engine) Subscribe(l Listener) func() {
	e.listenerMu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.listenerMu.Unlock()

	return func() {
		e.listenerMu.Lock()
		delete(e.listeners, id)
		e.listenerMu.Unlock()
	}
}

// Current returns the engine's present snapshot without side effects.
func (e *Engine) Current() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Close waits for in-flight background work (refreshes, optimistic cache
// writes) to finish.
func (e *Engine) Close() {
	e.wg.Wait()
}

// GetList returns the shopping list, cache-first. A populated cache answers
// immediately and triggers a best-effort background refresh whose outcome is
// not observable by this caller. An empty cache forces a synchronous fetch,
// whose failure propagates.
func (e *Engine) GetList(ctx context.Context) (Snapshot, error) {
	e.transition(StateLoading, "")

	has, err := e.store.Exists()
	if err != nil {
		// A cache probe failure downgrades to the network path rather
		// than failing a read the server could still answer.
		e.logger.Warn("cache probe failed", "error", err)
		has = false
	}

	if has {
		items, err := e.store.GetAllOrdered()
		if err == nil {
			savedAt, tsErr := e.store.LastSavedAt()
			if tsErr != nil {
				e.logger.Warn("cache timestamp read failed", "error", tsErr)
			}
			snap := e.setLoaded(items, savedAt)

			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.backgroundRefresh()
			}()
			return snap, nil
		}
		e.logger.Warn("cache read failed, falling back to fetch", "error", err)
	}

	list, err := e.gw.FetchList(ctx)
	if err != nil {
		e.transition(StateLoadFailed, err.Error())
		return Snapshot{}, err
	}
	if err := e.store.ReplaceAll(list.Items); err != nil {
		e.logger.Warn("cache replace failed after fetch", "error", err)
	}
	return e.setLoaded(list.Items, list.SavedAt), nil
}

// backgroundRefresh fetches the remote list and overwrites the cache and
// in-memory state on success. Failures are swallowed: the cache remains
// valid and nothing propagates to the caller that triggered the refresh.
func (e *Engine) backgroundRefresh() {
	list, err := e.gw.FetchList(context.Background())
	if err != nil {
		e.logger.Debug("background refresh failed", "error", err)
		return
	}
	if err := e.store.ReplaceAll(list.Items); err != nil {
		e.logger.Warn("cache replace failed after background refresh", "error", err)
	}
	e.setLoaded(list.Items, list.SavedAt)
}

// Refresh always fetches from the server. On success the cache is
// overwritten; on failure the cache is untouched and the error propagates.
// Falling back to the cache after a failed forced refresh is the caller's
// decision, not automatic.
func (e *Engine) Refresh(ctx context.Context) (Snapshot, error) {
	e.transition(StateLoading, "")

	list, err := e.gw.FetchList(ctx)
	if err != nil {
		e.transition(StateLoadFailed, err.Error())
		return Snapshot{}, err
	}
	if err := e.store.ReplaceAll(list.Items); err != nil {
		e.logger.Warn("cache replace failed after refresh", "error", err)
	}
	return e.setLoaded(list.Items, list.SavedAt), nil
}

// TogglePurchased flips an item's purchased flag. Marking purchased snapshots
// the full remaining amount as the default purchased quantity; unmarking
// resets the purchased quantity back to the remaining amount. The in-memory
// change is visible immediately; the cache write happens asynchronously and
// its failure is tolerated until the next full refresh.
func (e *Engine) TogglePurchased(id int64) (Snapshot, error) {
	e.mu.Lock()
	idx := e.indexOfLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return Snapshot{}, ErrItemNotFound
	}

	item := &e.items[idx]
	item.Purchased = !item.Purchased
	item.PurchasedQuantity = item.RemainingQuantity
	updated := *item

	e.recomputeLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	e.persistAsync(updated)
	return snap, nil
}

// SetPurchasedQuantity records a user-entered purchase quantity, clamped to
// [0, remaining]. Same optimistic-write tolerance as TogglePurchased.
func (e *Engine) SetPurchasedQuantity(id int64, quantity float64) (Snapshot, error) {
	e.mu.Lock()
	idx := e.indexOfLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return Snapshot{}, ErrItemNotFound
	}

	item := &e.items[idx]
	item.PurchasedQuantity = model.ClampQuantity(quantity, item.RemainingQuantity)
	updated := *item

	e.recomputeLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	e.persistAsync(updated)
	return snap, nil
}

func (e *Engine) persistAsync(item model.ShoppingItem) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.store.Upsert(item); err != nil {
			// In-memory state and cache now diverge until the next
			// full refresh reconciles them.
			e.logger.Warn("optimistic cache write failed", "id", item.ID, "error", err)
		}
	}()
}

// Sync submits all purchased items to the server, then prunes them from
// in-memory state and the cache. With nothing purchased it fails fast with
// ErrNothingToSync and makes no remote call. On remote failure everything is
// left untouched so the user can retry. The acknowledged modified count is
// surfaced but never cross-checked against the number of items sent.
func (e *Engine) Sync(ctx context.Context) (*model.SyncAck, error) {
	e.mu.Lock()
	var purchases []model.PurchaseEntry
	for _, item := range e.items {
		if item.Purchased {
			purchases = append(purchases, model.PurchaseEntry{
				ID:                item.ID,
				PurchasedQuantity: item.PurchasedQuantity,
				Purchased:         true,
			})
		}
	}
	e.mu.Unlock()

	if len(purchases) == 0 {
		return nil, ErrNothingToSync
	}

	ack, err := e.gw.SubmitPurchases(ctx, purchases)
	if err != nil {
		return nil, err
	}

	synced := make(map[int64]struct{}, len(purchases))
	for _, p := range purchases {
		synced[p.ID] = struct{}{}
	}

	e.mu.Lock()
	kept := e.items[:0]
	for _, item := range e.items {
		if _, ok := synced[item.ID]; !ok {
			kept = append(kept, item)
		}
	}
	e.items = kept
	e.recomputeLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if _, err := e.store.DeletePurchased(); err != nil {
		e.logger.Warn("cache prune failed after sync", "error", err)
	}

	e.notify(snap)
	return ack, nil
}

// Delete removes one item from the remote list, then from in-memory state.
// The cache row is left in place until the next full refresh drops it.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	ok, err := e.gw.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		// Server reports the item already gone; drop it locally too.
		e.logger.Debug("delete acknowledged as no-op", "id", id)
	}

	e.mu.Lock()
	idx := e.indexOfLocked(id)
	if idx >= 0 {
		e.items = append(e.items[:idx], e.items[idx+1:]...)
	}
	e.recomputeLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return nil
}

// Clear wipes the cache and resets in-memory state. Best effort: a storage
// failure is logged, never surfaced.
func (e *Engine) Clear() Snapshot {
	if err := e.store.DeleteAll(); err != nil {
		e.logger.Warn("cache clear failed", "error", err)
	}

	e.mu.Lock()
	e.items = nil
	e.state = StateIdle
	e.savedAt = time.Time{}
	e.lastErr = ""
	e.recomputeLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// --- internal state helpers ---

func (e *Engine) setLoaded(items []model.ShoppingItem, savedAt time.Time) Snapshot {
	sorted := make([]model.ShoppingItem, len(items))
	copy(sorted, items)
	sortByName(sorted)

	e.mu.Lock()
	e.items = sorted
	e.state = StateLoaded
	e.savedAt = savedAt
	e.lastErr = ""
	e.recomputeLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

func (e *Engine) transition(state State, errMsg string) {
	e.mu.Lock()
	e.state = state
	e.lastErr = errMsg
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
}

func (e *Engine) indexOfLocked(id int64) int {
	for i := range e.items {
		if e.items[i].ID == id {
			return i
		}
	}
	return -1
}

// recomputeLocked rederives the aggregates from current in-memory state.
// They are never persisted separately.
func (e *Engine) recomputeLocked() {
	var total float64
	purchased, remaining := 0, 0
	for _, item := range e.items {
		if item.Purchased {
			purchased++
			continue
		}
		remaining++
		if item.UnitPrice > 0 {
			total += item.RemainingQuantity * item.UnitPrice
		}
	}
	e.totalEstimate = total
	e.purchasedCount = purchased
	e.remainingCount = remaining
}

func (e *Engine) snapshotLocked() Snapshot {
	items := make([]model.ShoppingItem, len(e.items))
	copy(items, e.items)
	return Snapshot{
		State:          e.state,
		Items:          items,
		TotalEstimate:  e.totalEstimate,
		PurchasedCount: e.purchasedCount,
		RemainingCount: e.remainingCount,
		SavedAt:        e.savedAt,
		LastError:      e.lastErr,
	}
}

func (e *Engine) notify(snap Snapshot) {
	e.listenerMu.Lock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.listenerMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func sortByName(items []model.ShoppingItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}
