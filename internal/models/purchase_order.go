package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is a stock replenishment order placed with a supplier
type PurchaseOrder struct {
	ID          string          `db:"id" json:"id"`
	SupplierID  string          `db:"supplier_id" json:"supplier_id"`
	Status      string          `db:"status" json:"status"`
	Note        string          `db:"note" json:"note,omitempty"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	Details []*PurchaseOrderDetail `db:"-" json:"details,omitempty"`
}

// PurchaseOrderDetail is one line of a purchase order
type PurchaseOrderDetail struct {
	ID              string          `db:"id" json:"id"`
	PurchaseOrderID string          `db:"purchase_order_id" json:"purchase_order_id"`
	VariantID       string          `db:"variant_id" json:"variant_id"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// LineTotal returns quantity * unit price
func (d *PurchaseOrderDetail) LineTotal() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// NewPurchaseOrder creates a purchase order in its initial status
func NewPurchaseOrder(supplierID, note, createdBy string) *PurchaseOrder {
	now := GetCurrentTime()

	return &PurchaseOrder{
		ID:          GenerateID("po"),
		SupplierID:  supplierID,
		Status:      PurchaseOrderStatusPending,
		Note:        note,
		TotalAmount: decimal.Zero,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewPurchaseOrderDetail creates a detail line for purchaseOrderID
func NewPurchaseOrderDetail(purchaseOrderID, variantID string, quantity int, unitPrice decimal.Decimal) *PurchaseOrderDetail {
	return &PurchaseOrderDetail{
		ID:              GenerateID("pod"),
		PurchaseOrderID: purchaseOrderID,
		VariantID:       variantID,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
	}
}

// SumPurchaseOrderDetails returns the total of every line
func SumPurchaseOrderDetails(details []*PurchaseOrderDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.LineTotal())
	}
	return total
}
