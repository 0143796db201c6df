package cache

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noehblabla33-a11y/frigo/internal/database"
	"github.com/noehblabla33-a11y/frigo/internal/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func sampleItems() []model.ShoppingItem {
	return []model.ShoppingItem{
		{ID: 1, IngredientID: 10, Name: "Milk", NeededQuantity: 2, Unit: "L", UnitPrice: 1.5, RemainingQuantity: 2},
		{ID: 2, IngredientID: 11, Name: "Bread", NeededQuantity: 1, Unit: "pc", UnitPrice: 2.2, RemainingQuantity: 1},
		{ID: 3, IngredientID: 12, Name: "apples", NeededQuantity: 6, Unit: "pc", UnitPrice: 0.4, RemainingQuantity: 6, Purchased: true, PurchasedQuantity: 6},
	}
}

func TestReplaceAllAndGetAllOrdered(t *testing.T) {
	s := setupStore(t)

	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	items, err := s.GetAllOrdered()
	if err != nil {
		t.Fatalf("get all ordered: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	// Name ascending, case-insensitive
	want := []string{"apples", "Bread", "Milk"}
	for i, name := range want {
		if items[i].Name != name {
			t.Errorf("items[%d].Name = %q, want %q", i, items[i].Name, name)
		}
	}
}

func TestReplaceAllOverwrites(t *testing.T) {
	s := setupStore(t)

	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if err := s.ReplaceAll([]model.ShoppingItem{{ID: 9, Name: "Eggs", RemainingQuantity: 12}}); err != nil {
		t.Fatalf("second replace all: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	items, _ := s.GetAll()
	if items[0].ID != 9 || items[0].Name != "Eggs" {
		t.Errorf("unexpected survivor: %+v", items[0])
	}
}

func TestUpsert(t *testing.T) {
	s := setupStore(t)

	item := sampleItems()[0]
	if err := s.Upsert(item); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}

	item.Purchased = true
	item.PurchasedQuantity = 2
	if err := s.Upsert(item); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	items, err := s.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if !items[0].Purchased {
		t.Error("expected purchased = true after upsert")
	}
	if items[0].PurchasedQuantity != 2 {
		t.Errorf("purchased quantity = %v, want 2", items[0].PurchasedQuantity)
	}
}

func TestExistsAndCount(t *testing.T) {
	s := setupStore(t)

	exists, err := s.Exists()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("expected empty cache")
	}

	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	exists, err = s.Exists()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("expected populated cache")
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestDeleteAll(t *testing.T) {
	s := setupStore(t)

	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if err := s.DeleteAll(); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	exists, _ := s.Exists()
	if exists {
		t.Error("expected empty cache after delete all")
	}
}

func TestDeletePurchased(t *testing.T) {
	s := setupStore(t)

	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	removed, err := s.DeletePurchased()
	if err != nil {
		t.Fatalf("delete purchased: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	items, _ := s.GetAll()
	for _, item := range items {
		if item.Purchased {
			t.Errorf("item %d still purchased in cache", item.ID)
		}
	}
	if len(items) != 2 {
		t.Errorf("expected 2 remaining items, got %d", len(items))
	}
}

func TestLastSavedAt(t *testing.T) {
	s := setupStore(t)

	ts, err := s.LastSavedAt()
	if err != nil {
		t.Fatalf("last saved at: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time for empty cache, got %v", ts)
	}

	before := time.Now().Add(-time.Second)
	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	ts, err = s.LastSavedAt()
	if err != nil {
		t.Fatalf("last saved at: %v", err)
	}
	if ts.Before(before) {
		t.Errorf("saved at %v predates the write", ts)
	}
}

func TestWatch(t *testing.T) {
	s := setupStore(t)

	ch, cancel := s.Watch()
	defer cancel()

	if err := s.Upsert(sampleItems()[0]); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	select {
	case items := <-ch:
		if len(items) != 1 || items[0].ID != 1 {
			t.Errorf("unexpected watch snapshot: %+v", items)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for watch notification")
	}
}

func TestWatchCancel(t *testing.T) {
	s := setupStore(t)

	ch, cancel := s.Watch()
	cancel()
	// Double cancel should not panic
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	// Writes after cancel must not block or panic
	if err := s.Upsert(sampleItems()[0]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

// Concurrent readers must never observe an empty table while ReplaceAll
// swaps the rows out underneath them.
func TestReplaceAllAtomicity(t *testing.T) {
	s := setupStore(t)

	if err := s.ReplaceAll(sampleItems()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stop := make(chan struct{})
	var sawEmpty atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				items, err := s.GetAll()
				if err != nil {
					t.Errorf("read during swap: %v", err)
					return
				}
				if len(items) == 0 {
					sawEmpty.Store(true)
					return
				}
			}
		}()
	}

	for i := 0; i < 30; i++ {
		if err := s.ReplaceAll(sampleItems()); err != nil {
			t.Fatalf("replace all #%d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	if sawEmpty.Load() {
		t.Error("a reader observed an empty table mid-swap")
	}
}
