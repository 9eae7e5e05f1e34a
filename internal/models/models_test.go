package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// Every status a table names as a target must itself be a key, otherwise the
// entity could reach a status from which nothing is known.
func TestTransitionTablesAreClosed(t *testing.T) {
	for kind, table := range TransitionTables() {
		for from, next := range table {
			for _, to := range next {
				if !table.Has(to) {
					t.Errorf("%s: %s -> %s targets an undeclared status", kind, from, to)
				}
			}
		}
	}
}

func TestOrderTransitions(t *testing.T) {
	want := map[string][]string{
		OrderStatusNew:        {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
		OrderStatusPreparing:  {OrderStatusPacked, OrderStatusCancelled},
		OrderStatusPacked:     {OrderStatusShipping, OrderStatusCancelled},
		OrderStatusShipping:   {OrderStatusDelivered},
		OrderStatusDelivered:  nil,
		OrderStatusCancelled:  nil,
	}

	for from, next := range want {
		got := OrderTransitions.Allowed(from)
		if strings.Join(got, ",") != strings.Join(next, ",") {
			t.Errorf("Allowed(%s) = %v, want %v", from, got, next)
		}
	}

	// No edge outside the declared set is ever accepted.
	for _, from := range OrderTransitions.Statuses() {
		for _, to := range OrderTransitions.Statuses() {
			allowed := strings.Contains(","+strings.Join(want[from], ",")+",", ","+to+",")
			if OrderTransitions.CanTransition(from, to) != allowed {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, !allowed, allowed)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[EntityKind][]string{
		KindOrder:          {OrderStatusDelivered, OrderStatusCancelled},
		KindPurchaseOrder:  {PurchaseOrderStatusCompleted, PurchaseOrderStatusCancelled},
		KindInventoryCheck: {InventoryCheckStatusCompleted, InventoryCheckStatusCancelled},
		KindSupportRequest: {SupportRequestStatusClosed},
	}

	tables := TransitionTables()
	for kind, statuses := range terminal {
		for _, s := range statuses {
			if !tables[kind].IsTerminal(s) {
				t.Errorf("%s: %s should be terminal", kind, s)
			}
		}
	}
}

func TestDetailsEditable(t *testing.T) {
	tests := []struct {
		kind   EntityKind
		status string
		want   bool
	}{
		{KindOrder, OrderStatusNew, true},
		{KindOrder, OrderStatusProcessing, false},
		{KindPurchaseOrder, PurchaseOrderStatusPending, true},
		{KindPurchaseOrder, PurchaseOrderStatusCancelled, false},
		{KindInventoryCheck, InventoryCheckStatusDraft, true},
		{KindInventoryCheck, InventoryCheckStatusCompleted, false},
		{KindSupportRequest, SupportRequestStatusPending, false},
	}

	for _, tt := range tests {
		if got := DetailsEditable(tt.kind, tt.status); got != tt.want {
			t.Errorf("DetailsEditable(%s, %s) = %v, want %v", tt.kind, tt.status, got, tt.want)
		}
	}
}

func TestOrderTotals(t *testing.T) {
	o := NewOrder("cus-1", PaymentMethodCOD, "1 Main St", "")
	o.AddDetail("var-1", 2, decimal.RequireFromString("19.99"))
	o.AddDetail("var-2", 1, decimal.RequireFromString("5.02"))

	if !o.TotalAmount.Equal(decimal.RequireFromString("45.00")) {
		t.Fatalf("TotalAmount = %s, want 45.00", o.TotalAmount)
	}

	p := NewPayment(o)
	if p.Status != PaymentStatusPending || !p.Amount.Equal(o.TotalAmount) {
		t.Fatalf("unexpected payment %+v", p)
	}
}

func TestStatusChangedEventRoundTrip(t *testing.T) {
	msg, err := NewStatusChangedEvent(StatusChangedData{
		EntityType: KindPurchaseOrder,
		EntityID:   "po-1",
		OldStatus:  PurchaseOrderStatusPending,
		NewStatus:  PurchaseOrderStatusCancelled,
		ActorID:    "usr-1",
	})
	if err != nil {
		t.Fatalf("NewStatusChangedEvent() error = %v", err)
	}
	if msg.EventType != "purchase_order_status_changed" {
		t.Fatalf("EventType = %q", msg.EventType)
	}

	event, data, err := DecodeStatusChanged(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeStatusChanged() error = %v", err)
	}
	if event.AggregateID != "po-1" || data.NewStatus != PurchaseOrderStatusCancelled || data.EntityType != KindPurchaseOrder {
		t.Fatalf("unexpected decoded event %+v / %+v", event, data)
	}
}
