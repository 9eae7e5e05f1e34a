package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a customer order
type Order struct {
	ID              string          `db:"id" json:"id"`
	CustomerID      string          `db:"customer_id" json:"customer_id"`
	Status          string          `db:"status" json:"status"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	Note            string          `db:"note" json:"note,omitempty"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	Details  []*OrderDetail `db:"-" json:"details,omitempty"`
	Payments []*Payment     `db:"-" json:"payments,omitempty"`
}

// OrderDetail is one line of an order. UnitPrice is the variant price at checkout.
type OrderDetail struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	VariantID string          `db:"variant_id" json:"variant_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// LineTotal returns quantity * unit price
func (d *OrderDetail) LineTotal() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// Payment methods
const (
	PaymentMethodCOD   = "cod"
	PaymentMethodVNPay = "vnpay"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusCancelled = "cancelled"
)

// ValidatePaymentMethod rejects unsupported payment methods
func ValidatePaymentMethod(method string) error {
	switch method {
	case PaymentMethodCOD, PaymentMethodVNPay:
		return nil
	default:
		return fmt.Errorf("unsupported payment method %q", method)
	}
}

// Payment records how an order is paid
type Payment struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	Method    string          `db:"method" json:"method"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	PaidAt    *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// NewOrder creates a new order in its initial status
func NewOrder(customerID, paymentMethod, shippingAddress, note string) *Order {
	now := GetCurrentTime()

	return &Order{
		ID:              GenerateID("ord"),
		CustomerID:      customerID,
		Status:          OrderStatusNew,
		PaymentMethod:   paymentMethod,
		ShippingAddress: shippingAddress,
		Note:            note,
		TotalAmount:     decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AddDetail appends a line and adds it to the order total
func (o *Order) AddDetail(variantID string, quantity int, unitPrice decimal.Decimal) *OrderDetail {
	d := &OrderDetail{
		ID:        GenerateID("odd"),
		OrderID:   o.ID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
	o.Details = append(o.Details, d)
	o.TotalAmount = o.TotalAmount.Add(d.LineTotal())
	return d
}

// NewPayment creates the pending payment for an order's current total
func NewPayment(order *Order) *Payment {
	now := GetCurrentTime()

	return &Payment{
		ID:        GenerateID("pay"),
		OrderID:   order.ID,
		Method:    order.PaymentMethod,
		Amount:    order.TotalAmount,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
