package models

import "time"

// InventoryCheck is a stock count. Completing it overwrites variant stock with the counted quantities.
type InventoryCheck struct {
	ID        string    `db:"id" json:"id"`
	Status    string    `db:"status" json:"status"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Details []*InventoryCheckDetail `db:"-" json:"details,omitempty"`
}

// InventoryCheckDetail holds the counted quantity of one variant next to the
// stock recorded when the check was created.
type InventoryCheckDetail struct {
	ID               string `db:"id" json:"id"`
	InventoryCheckID string `db:"inventory_check_id" json:"inventory_check_id"`
	VariantID        string `db:"variant_id" json:"variant_id"`
	SystemQuantity   int    `db:"system_quantity" json:"system_quantity"`
	ActualQuantity   int    `db:"actual_quantity" json:"actual_quantity"`
}

// Difference returns actual minus recorded stock
func (d *InventoryCheckDetail) Difference() int {
	return d.ActualQuantity - d.SystemQuantity
}

// NewInventoryCheck creates an inventory check in its initial status
func NewInventoryCheck(note, createdBy string) *InventoryCheck {
	now := GetCurrentTime()

	return &InventoryCheck{
		ID:        GenerateID("ic"),
		Status:    InventoryCheckStatusDraft,
		Note:      note,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
