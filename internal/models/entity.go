package models

import (
	"fmt"

	"github.com/vaidashi/backoffice-api/pkg/statemachine"
)

// EntityKind names a status-bearing back-office entity
type EntityKind string

const (
	KindOrder          EntityKind = "order"
	KindPurchaseOrder  EntityKind = "purchase_order"
	KindInventoryCheck EntityKind = "inventory_check"
	KindSupportRequest EntityKind = "support_request"
)

// Kinds lists every status-bearing entity
var Kinds = []EntityKind{KindOrder, KindPurchaseOrder, KindInventoryCheck, KindSupportRequest}

// ParseEntityKind validates s as an EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// StatusChangedEvent is the outbox event type written for every accepted transition
func (k EntityKind) StatusChangedEvent() string {
	return string(k) + "_status_changed"
}

// CreatedEvent is the outbox event type written when an entity is created
func (k EntityKind) CreatedEvent() string {
	return string(k) + "_created"
}

// Order statuses
const (
	OrderStatusNew        = "new"
	OrderStatusProcessing = "processing"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPreparing  = "preparing"
	OrderStatusPacked     = "packed"
	OrderStatusShipping   = "shipping"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Purchase order statuses
const (
	PurchaseOrderStatusPending    = "pending"
	PurchaseOrderStatusProcessing = "processing"
	PurchaseOrderStatusCompleted  = "completed"
	PurchaseOrderStatusCancelled  = "cancelled"
)

// Inventory check statuses
const (
	InventoryCheckStatusDraft     = "draft"
	InventoryCheckStatusCompleted = "completed"
	InventoryCheckStatusCancelled = "cancelled"
)

// Support request statuses
const (
	SupportRequestStatusPending    = "pending"
	SupportRequestStatusProcessing = "processing"
	SupportRequestStatusResolved   = "resolved"
	SupportRequestStatusClosed     = "closed"
)

// OrderTransitions is the order lifecycle. An order can be cancelled until it ships.
var OrderTransitions = statemachine.Table{
	OrderStatusNew:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusPacked, OrderStatusCancelled},
	OrderStatusPacked:     {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:   {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var PurchaseOrderTransitions = statemachine.Table{
	PurchaseOrderStatusPending:    {PurchaseOrderStatusProcessing, PurchaseOrderStatusCancelled},
	PurchaseOrderStatusProcessing: {PurchaseOrderStatusCompleted, PurchaseOrderStatusCancelled},
	PurchaseOrderStatusCompleted:  {},
	PurchaseOrderStatusCancelled:  {},
}

var InventoryCheckTransitions = statemachine.Table{
	InventoryCheckStatusDraft:     {InventoryCheckStatusCompleted, InventoryCheckStatusCancelled},
	InventoryCheckStatusCompleted: {},
	InventoryCheckStatusCancelled: {},
}

var SupportRequestTransitions = statemachine.Table{
	SupportRequestStatusPending:    {SupportRequestStatusProcessing, SupportRequestStatusClosed},
	SupportRequestStatusProcessing: {SupportRequestStatusResolved, SupportRequestStatusClosed},
	SupportRequestStatusResolved:   {SupportRequestStatusClosed},
	SupportRequestStatusClosed:     {},
}

// TransitionTables returns the transition table of every entity kind
func TransitionTables() map[EntityKind]statemachine.Table {
	return map[EntityKind]statemachine.Table{
		KindOrder:          OrderTransitions,
		KindPurchaseOrder:  PurchaseOrderTransitions,
		KindInventoryCheck: InventoryCheckTransitions,
		KindSupportRequest: SupportRequestTransitions,
	}
}

// editableStatus is the only status in which an entity's detail rows may change.
var editableStatus = map[EntityKind]string{
	KindOrder:          OrderStatusNew,
	KindPurchaseOrder:  PurchaseOrderStatusPending,
	KindInventoryCheck: InventoryCheckStatusDraft,
}

// DetailsEditable reports whether detail rows of kind may be modified in status
func DetailsEditable(kind EntityKind, status string) bool {
	s, ok := editableStatus[kind]
	return ok && s == status
}
