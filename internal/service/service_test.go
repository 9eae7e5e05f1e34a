package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

func TestMergeItems(t *testing.T) {
	got, err := mergeItems([]OrderItem{
		{VariantID: "var-b", Quantity: 1},
		{VariantID: "var-a", Quantity: 2},
		{VariantID: "var-b", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("mergeItems() error = %v", err)
	}

	want := []OrderItem{{VariantID: "var-b", Quantity: 4}, {VariantID: "var-a", Quantity: 2}}
	if len(got) != len(want) {
		t.Fatalf("mergeItems() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mergeItems() = %+v, want %+v", got, want)
		}
	}
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	svc := &OrderService{logger: logger.NewNop()}
	valid := CreateOrderInput{
		CustomerID:      "cus-1",
		PaymentMethod:   models.PaymentMethodCOD,
		ShippingAddress: "1 Main St",
		Items:           []OrderItem{{VariantID: "var-1", Quantity: 1}},
	}

	tests := map[string]func(in *CreateOrderInput){
		"no items":       func(in *CreateOrderInput) { in.Items = nil },
		"zero quantity":  func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
		"no variant":     func(in *CreateOrderInput) { in.Items[0].VariantID = " " },
		"no customer":    func(in *CreateOrderInput) { in.CustomerID = "" },
		"no address":     func(in *CreateOrderInput) { in.ShippingAddress = "" },
		"unknown method": func(in *CreateOrderInput) { in.PaymentMethod = "card" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			in := valid
			in.Items = append([]OrderItem(nil), valid.Items...)
			mutate(&in)

			_, err := svc.CreateOrder(context.Background(), in)
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("CreateOrder() error = %v, want invalid input", err)
			}
		})
	}
}

func TestValidateCounts(t *testing.T) {
	if err := validateCounts([]CountItem{{VariantID: "var-1", ActualQuantity: 0}}); err != nil {
		t.Fatalf("zero count must be accepted: %v", err)
	}

	bad := [][]CountItem{
		nil,
		{{VariantID: "var-1", ActualQuantity: -1}},
		{{VariantID: "var-1", ActualQuantity: 1}, {VariantID: "var-1", ActualQuantity: 2}},
	}
	for _, items := range bad {
		if err := validateCounts(items); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("validateCounts(%+v) = %v, want invalid input", items, err)
		}
	}
}

func TestNotEditable(t *testing.T) {
	err := notEditable(models.KindPurchaseOrder, models.PurchaseOrderStatusProcessing)

	if apperrors.StatusCode(err) != 409 {
		t.Fatalf("StatusCode() = %d, want 409", apperrors.StatusCode(err))
	}
	if got, want := err.Error(), "purchase order is not editable in status processing"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestFromRepo(t *testing.T) {
	err := fromRepo("get order", models.KindOrder, "ord-1", repository.ErrNotFound)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("not found mapped to %v", err)
	}

	err = fromRepo("get order", models.KindOrder, "ord-1", repository.ErrDatabase)
	if !errors.Is(err, apperrors.ErrPersistence) || !errors.Is(err, repository.ErrDatabase) {
		t.Fatalf("database error mapped to %v", err)
	}

	conflict := apperrors.NewConflictError("taken")
	if got := fromRepo("op", models.KindOrder, "ord-1", conflict); got != error(conflict) {
		t.Fatalf("AppError must pass through unchanged, got %v", got)
	}
}

type fakeCache struct {
	entries map[string]*models.SupportRequest
	sets    int
}

func (c *fakeCache) Get(_ context.Context, kind models.EntityKind, id string, dest interface{}) (bool, error) {
	sr, ok := c.entries[string(kind)+":"+id]
	if !ok {
		return false, nil
	}
	*dest.(*models.SupportRequest) = *sr
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, kind models.EntityKind, id string, value interface{}) error {
	c.sets++
	c.entries[string(kind)+":"+id] = value.(*models.SupportRequest)
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, kind models.EntityKind, id string) error {
	delete(c.entries, string(kind)+":"+id)
	return nil
}

func (c *fakeCache) Close() error { return nil }

func TestReadThrough(t *testing.T) {
	c := &fakeCache{entries: map[string]*models.SupportRequest{}}
	loads := 0
	load := func(context.Context) (*models.SupportRequest, error) {
		loads++
		return &models.SupportRequest{ID: "sr-1", Status: models.SupportRequestStatusPending}, nil
	}

	for i := 0; i < 3; i++ {
		sr, err := readThrough(context.Background(), c, logger.NewNop(), models.KindSupportRequest, "sr-1", load)
		if err != nil || sr.ID != "sr-1" {
			t.Fatalf("readThrough() = %+v, %v", sr, err)
		}
	}
	if loads != 1 || c.sets != 1 {
		t.Fatalf("loads = %d, sets = %d, want 1 and 1", loads, c.sets)
	}

	_, err := readThrough(context.Background(), c, logger.NewNop(), models.KindSupportRequest, "sr-2",
		func(context.Context) (*models.SupportRequest, error) { return nil, repository.ErrNotFound })
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing entity error = %v, want not found", err)
	}
}
