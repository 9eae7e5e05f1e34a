package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/testutil"
	"github.com/vaidashi/backoffice-api/internal/transition"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

func TestOrderRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	v := testutil.SeedVariant(t, db, 10, "12.50")
	orders := NewOrderRepository(db, logger.NewNop())

	order := models.NewOrder("cus-1", models.PaymentMethodCOD, "1 Main St", "")
	order.AddDetail(v.ID, 2, v.Price)

	testutil.InTx(t, db, func(tx *sqlx.Tx) error {
		if err := orders.CreateInTx(ctx, tx, order); err != nil {
			return err
		}
		return orders.CreatePaymentInTx(ctx, tx, models.NewPayment(order))
	})

	got, err := orders.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Details) != 1 || len(got.Payments) != 1 {
		t.Fatalf("details = %d, payments = %d, want 1 and 1", len(got.Details), len(got.Payments))
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("TotalAmount = %s, want 25", got.TotalAmount)
	}

	if _, err := orders.GetByID(ctx, "ord-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestVariantQuantityConstraint(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	v := testutil.SeedVariant(t, db, 1, "1.00")
	variants := NewVariantRepository(db, logger.NewNop())

	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return variants.AdjustQuantityInTx(ctx, tx, v.ID, -2)
	})
	if !errors.Is(err, ErrDatabase) {
		t.Fatalf("AdjustQuantityInTx(-2) error = %v, want ErrDatabase", err)
	}
	if q := testutil.VariantQuantity(t, db, v.ID); q != 1 {
		t.Fatalf("quantity = %d, want 1", q)
	}
}

func newPostgresEngine(db *TransitionStore) *transition.Engine[*sqlx.Tx] {
	return transition.NewEngine[*sqlx.Tx](db, models.TransitionTables(), logger.NewNop())
}

func TestTransitionStoreRejectsDeliveredReopen(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	history := NewHistoryRepository(db, logger.NewNop())
	store := NewTransitionStore(db, history)
	engine := newPostgresEngine(store)

	sr := models.NewSupportRequest("cus-1", "Late", "Where is my parcel")
	testutil.InTx(t, db, func(tx *sqlx.Tx) error {
		return NewSupportRequestRepository(db, logger.NewNop()).CreateInTx(ctx, tx, sr)
	})

	for _, to := range []string{models.SupportRequestStatusClosed, models.SupportRequestStatusProcessing} {
		_, err := engine.Apply(ctx, transition.Request{Kind: models.KindSupportRequest, EntityID: sr.ID, To: to, ActorID: "usr-1"})
		if to == models.SupportRequestStatusClosed && err != nil {
			t.Fatalf("close: %v", err)
		}
		if to == models.SupportRequestStatusProcessing && !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Fatalf("reopen error = %v, want invalid transition", err)
		}
	}

	records, err := history.ListByEntity(ctx, models.KindSupportRequest, sr.ID)
	if err != nil {
		t.Fatalf("ListByEntity() error = %v", err)
	}
	if len(records) != 1 || records[0].FromStatus != models.SupportRequestStatusPending || records[0].ActorID != "usr-1" {
		t.Fatalf("unexpected history %+v", records)
	}

	_, err = engine.Apply(ctx, transition.Request{Kind: models.KindSupportRequest, EntityID: "sr-missing", To: models.SupportRequestStatusClosed})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing entity error = %v, want not found", err)
	}
}

func TestTransitionStoreSerialisesRacingCompletions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	history := NewHistoryRepository(db, logger.NewNop())
	engine := newPostgresEngine(NewTransitionStore(db, history))

	ic := models.NewInventoryCheck("", "usr-1")
	testutil.InTx(t, db, func(tx *sqlx.Tx) error {
		return NewInventoryCheckRepository(db, logger.NewNop()).CreateInTx(ctx, tx, ic)
	})

	const racers = 5
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Apply(ctx, transition.Request{
				Kind: models.KindInventoryCheck, EntityID: ic.ID, To: models.InventoryCheckStatusCompleted,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d completions succeeded, want 1", succeeded)
	}

	records, _ := history.ListByEntity(ctx, models.KindInventoryCheck, ic.ID)
	if len(records) != 1 {
		t.Fatalf("history len = %d, want 1", len(records))
	}
}

func TestOutboxClaimRetryAndDeadLetter(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	deadLetters := NewDeadLetterRepository(db, logger.NewNop())
	outbox := NewOutboxRepository(db, deadLetters, logger.NewNop())

	msg, err := models.NewStatusChangedEvent(models.StatusChangedData{
		EntityType: models.KindOrder, EntityID: "ord-1", OldStatus: "new", NewStatus: "processing",
	})
	if err != nil {
		t.Fatal(err)
	}
	testutil.InTx(t, db, func(tx *sqlx.Tx) error { return outbox.CreateInTx(ctx, tx, msg) })

	claimed, err := outbox.ClaimPending(ctx, 10, time.Minute)
	if err != nil || len(claimed) != 1 || claimed[0].ProcessingAttempts != 1 {
		t.Fatalf("ClaimPending() = %v, %v", claimed, err)
	}
	if again, _ := outbox.ClaimPending(ctx, 10, time.Minute); len(again) != 0 {
		t.Fatalf("claimed message was handed out twice")
	}

	if err := outbox.MarkForRetry(ctx, msg.ID, "broker down"); err != nil {
		t.Fatal(err)
	}
	claimed, _ = outbox.ClaimPending(ctx, 10, time.Minute)
	if len(claimed) != 1 || claimed[0].ProcessingAttempts != 2 {
		t.Fatalf("retry claim = %v", claimed)
	}

	if err := outbox.MoveToDeadLetter(ctx, claimed[0], "broker down", "max retries reached"); err != nil {
		t.Fatalf("MoveToDeadLetter() error = %v", err)
	}

	dls, err := deadLetters.List(ctx, ListFilter{Status: string(models.DeadLetterStatusPending)})
	if err != nil || len(dls) != 1 {
		t.Fatalf("dead letters = %v, %v", dls, err)
	}
	if dls[0].OriginalMessageID != msg.ID || dls[0].RetryCount != 2 {
		t.Fatalf("unexpected dead letter %+v", dls[0])
	}

	stored, _ := outbox.GetMessage(ctx, msg.ID)
	if stored.Status != models.OutboxStatusFailed {
		t.Fatalf("outbox status = %s, want failed", stored.Status)
	}
}

func TestOutboxReclaimsAbandonedClaims(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	outbox := NewOutboxRepository(db, NewDeadLetterRepository(db, logger.NewNop()), logger.NewNop())

	msg, err := models.NewCreatedEvent(models.StatusChangedData{
		EntityType: models.KindSupportRequest, EntityID: "sr-1", NewStatus: "pending",
	})
	if err != nil {
		t.Fatal(err)
	}
	testutil.InTx(t, db, func(tx *sqlx.Tx) error { return outbox.CreateInTx(ctx, tx, msg) })

	if claimed, _ := outbox.ClaimPending(ctx, 10, time.Minute); len(claimed) != 1 {
		t.Fatalf("first claim = %v", claimed)
	}
	if again, _ := outbox.ClaimPending(ctx, 10, time.Minute); len(again) != 0 {
		t.Fatal("a live claim must not be handed out again")
	}

	// The claiming processor died; its claim is now older than the lease.
	if _, err := db.DB.ExecContext(ctx,
		`UPDATE outbox_messages SET claimed_at = claimed_at - INTERVAL '10 minutes' WHERE id = $1`, msg.ID); err != nil {
		t.Fatal(err)
	}

	reclaimed, err := outbox.ClaimPending(ctx, 10, time.Minute)
	if err != nil || len(reclaimed) != 1 || reclaimed[0].ID != msg.ID {
		t.Fatalf("reclaim = %v, %v", reclaimed, err)
	}
	if reclaimed[0].ProcessingAttempts != 2 || reclaimed[0].ClaimedAt == nil {
		t.Fatalf("unexpected reclaimed row %+v", reclaimed[0])
	}
}
