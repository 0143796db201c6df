package cache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/noehblabla33-a11y/frigo/internal/model"
)

// Error is a typed failure from the cache store. It names the operation and
// wraps the underlying storage error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// Store persists shopping items in the local SQLite cache table, keyed by
// item id. Writes notify any active Watch subscriptions.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	watchers map[chan []model.ShoppingItem]struct{}
}

// NewStore creates a Store over an opened cache database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		watchers: make(map[chan []model.ShoppingItem]struct{}),
	}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var achete int
	var ts int64

	err := scanner.Scan(
		&item.ID, &item.IngredientID, &item.Name, &item.NeededQuantity,
		&item.Unit, &item.UnitPrice, &item.EstimatedPrice, &item.Image,
		&item.Category, &achete, &item.PurchasedQuantity,
		&item.RemainingQuantity, &ts,
	)
	if err != nil {
		return nil, err
	}

	item.Purchased = achete != 0
	return &item, nil
}

const itemCols = `id, ingredient_id, ingredient_nom, quantite, unite, prix_unitaire, prix_estime, image, categorie, achete, quantite_achetee, quantite_restante, timestamp`

const upsertSQL = `INSERT INTO shopping_cache (` + itemCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		ingredient_id = excluded.ingredient_id,
		ingredient_nom = excluded.ingredient_nom,
		quantite = excluded.quantite,
		unite = excluded.unite,
		prix_unitaire = excluded.prix_unitaire,
		prix_estime = excluded.prix_estime,
		image = excluded.image,
		categorie = excluded.categorie,
		achete = excluded.achete,
		quantite_achetee = excluded.quantite_achetee,
		quantite_restante = excluded.quantite_restante,
		timestamp = excluded.timestamp`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReplaceAll atomically clears the table and inserts items. Concurrent
// readers see either the previous rows or the new ones, never an empty
// table mid-swap.
func (s *Store) ReplaceAll(items []model.ShoppingItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrap("replace all", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM shopping_cache`); err != nil {
		return wrap("replace all", err)
	}

	now := time.Now().UnixMilli()
	for _, item := range items {
		_, err := tx.Exec(upsertSQL,
			item.ID, item.IngredientID, item.Name, item.NeededQuantity,
			item.Unit, item.UnitPrice, item.EstimatedPrice, item.Image,
			item.Category, boolToInt(item.Purchased), item.PurchasedQuantity,
			item.RemainingQuantity, now,
		)
		if err != nil {
			return wrap("replace all", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap("replace all", err)
	}

	s.notify()
	return nil
}

// Upsert inserts or overwrites one row by id.
func (s *Store) Upsert(item model.ShoppingItem) error {
	_, err := s.db.Exec(upsertSQL,
		item.ID, item.IngredientID, item.Name, item.NeededQuantity,
		item.Unit, item.UnitPrice, item.EstimatedPrice, item.Image,
		item.Category, boolToInt(item.Purchased), item.PurchasedQuantity,
		item.RemainingQuantity, time.Now().UnixMilli(),
	)
	if err != nil {
		return wrap("upsert", err)
	}

	s.notify()
	return nil
}

// DeleteAll clears the table.
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM shopping_cache`); err != nil {
		return wrap("delete all", err)
	}

	s.notify()
	return nil
}

// DeletePurchased removes rows with the purchased flag set and returns how
// many were removed.
func (s *Store) DeletePurchased() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM shopping_cache WHERE achete = 1`)
	if err != nil {
		return 0, wrap("delete purchased", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, wrap("delete purchased", err)
	}

	s.notify()
	return count, nil
}

// GetAll returns all cached rows as a point-in-time snapshot, in table order.
func (s *Store) GetAll() ([]model.ShoppingItem, error) {
	return s.query(`SELECT ` + itemCols + ` FROM shopping_cache`)
}

// GetAllOrdered returns all cached rows sorted by name ascending.
func (s *Store) GetAllOrdered() ([]model.ShoppingItem, error) {
	return s.query(`SELECT ` + itemCols + ` FROM shopping_cache ORDER BY ingredient_nom COLLATE NOCASE ASC`)
}

func (s *Store) query(q string) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, wrap("get all", err)
	}
	defer rows.Close()

	var items []model.ShoppingItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, wrap("scan item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get all", err)
	}
	return items, nil
}

// Exists reports whether at least one row is cached.
func (s *Store) Exists() (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM shopping_cache)`).Scan(&exists)
	if err != nil {
		return false, wrap("exists", err)
	}
	return exists, nil
}

// Count returns the number of cached rows.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM shopping_cache`).Scan(&count)
	if err != nil {
		return 0, wrap("count", err)
	}
	return count, nil
}

// LastSavedAt returns the most recent write time recorded in the cache, or
// the zero time when the cache is empty. Freshness bookkeeping only; no
// expiry is enforced.
func (s *Store) LastSavedAt() (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(timestamp) FROM shopping_cache`).Scan(&ts)
	if err != nil {
		return time.Time{}, wrap("last saved at", err)
	}
	if !ts.Valid || ts.Int64 == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ts.Int64), nil
}

// Watch subscribes to cache writes. The returned channel receives a fresh
// ordered snapshot after every successful write; slow receivers miss
// intermediate snapshots rather than blocking writers. The cancel func
// unregisters the subscription and closes the channel.
func (s *Store) Watch() (<-chan []model.ShoppingItem, func()) {
	ch := make(chan []model.ShoppingItem, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.RLock()
	n := len(s.watchers)
	s.mu.RUnlock()
	if n == 0 {
		return
	}

	items, err := s.GetAllOrdered()
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- items:
		default:
			// Subscriber lagging — drop this snapshot, the next write
			// will deliver a fresher one.
		}
	}
}
