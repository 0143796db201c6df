package model

import "time"

// CompletionTolerance absorbs decimal rounding when deciding whether an
// item's remaining quantity is effectively zero.
const CompletionTolerance = 0.01

// ShoppingItem is one ingredient to purchase. JSON tags follow the fridge
// service wire shape, which the cache persists unchanged.
type ShoppingItem struct {
	ID                int64   `json:"id"`
	IngredientID      int64   `json:"ingredient_id"`
	Name              string  `json:"ingredient_nom"`
	NeededQuantity    float64 `json:"quantite"`
	Unit              string  `json:"unite"`
	UnitPrice         float64 `json:"prix_unitaire"`
	EstimatedPrice    float64 `json:"prix_estime"`
	Image             string  `json:"image,omitempty"`
	Category          string  `json:"categorie,omitempty"`
	Purchased         bool    `json:"achete"`
	PurchasedQuantity float64 `json:"quantite_achetee"`
	RemainingQuantity float64 `json:"quantite_restante"`
}

// PurchasedTotal is the cost of the currently recorded purchase, or 0 when
// the unit price is unknown.
func (i ShoppingItem) PurchasedTotal() float64 {
	if i.UnitPrice <= 0 {
		return 0
	}
	return i.PurchasedQuantity * i.UnitPrice
}

// IsComplete reports whether nothing is left outstanding for this item.
func (i ShoppingItem) IsComplete() bool {
	return i.RemainingQuantity <= CompletionTolerance
}

// ClampQuantity bounds a user-entered purchase quantity to [0, remaining].
func ClampQuantity(q, remaining float64) float64 {
	if q < 0 {
		return 0
	}
	if q > remaining {
		return remaining
	}
	return q
}

// ListSnapshot is an immutable point-in-time copy of the shopping list.
type ListSnapshot struct {
	Items         []ShoppingItem `json:"items"`
	TotalEstimate float64        `json:"total_estime"`
	SavedAt       time.Time      `json:"saved_at"`
}

// PurchaseEntry is one line of a sync payload sent back to the server.
type PurchaseEntry struct {
	ID                int64   `json:"id"`
	PurchasedQuantity float64 `json:"quantite_achetee"`
	Purchased         bool    `json:"achete"`
}

// SyncAck is the server's acknowledgement of a purchase sync.
type SyncAck struct {
	ModifiedCount int64  `json:"items_modifies"`
	Message       string `json:"message"`
}
