package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vaidashi/backoffice-api/internal/config"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/repository"
	"github.com/vaidashi/backoffice-api/internal/service"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
	"github.com/vaidashi/backoffice-api/pkg/logger"
	"github.com/vaidashi/backoffice-api/pkg/middleware"
)

type fakeOrders struct {
	OrderService
	lastChange service.StatusChange
	lastInput  service.CreateOrderInput
	statusErr  error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, in service.CreateOrderInput) (*models.Order, error) {
	f.lastInput = in
	return &models.Order{ID: "ord-1", CustomerID: in.CustomerID, Status: models.OrderStatusNew}, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if id != "ord-1" {
		return nil, apperrors.NewNotFoundError("order " + id + " not found")
	}
	return &models.Order{ID: id, Status: models.OrderStatusNew}, nil
}

func (f *fakeOrders) ListOrders(ctx context.Context, filter repository.ListFilter) ([]*models.Order, int, error) {
	return []*models.Order{{ID: "ord-1"}}, 7, nil
}

func (f *fakeOrders) UpdateOrderStatus(ctx context.Context, id string, req service.StatusChange) (*models.Order, error) {
	f.lastChange = req
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &models.Order{ID: id, Status: req.Status}, nil
}

func (f *fakeOrders) OrderHistory(ctx context.Context, id string) ([]*models.StatusHistory, error) {
	return nil, nil
}

type fakeDeadLetters struct {
	DeadLetterService
	discarded string
}

func (f *fakeDeadLetters) RetryDeadLetter(ctx context.Context, id int64) (*models.OutboxMessage, error) {
	if id != 3 {
		return nil, apperrors.NewConflictError("dead letter message is not pending")
	}
	return &models.OutboxMessage{ID: 42}, nil
}

func (f *fakeDeadLetters) DiscardDeadLetter(ctx context.Context, id int64, reason string) error {
	f.discarded = reason
	return nil
}

type fakeBreaker struct{ resets int }

func (b *fakeBreaker) Metrics() map[string]interface{} { return map[string]interface{}{"state": "open"} }
func (b *fakeBreaker) Reset()                          { b.resets++ }

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(deps Dependencies) http.Handler {
	log := logger.NewNop()
	deps.Actor = middleware.NewActorMiddleware("", log)
	if deps.Orders == nil {
		deps.Orders = &fakeOrders{}
	}
	return NewServer(&config.Config{Port: 8080}, deps, log).Handler()
}

func do(h http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, ApiResponse) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp ApiResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestStatusPatchPassesActorAndNote(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestServer(Dependencies{Orders: orders})

	rec, resp := do(h, http.MethodPatch, "/api/v1/orders/ord-1/status",
		`{"status":"processing","note":"picked"}`, middleware.ActorHeader, "usr-7")

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := service.StatusChange{Status: "processing", Note: "picked", ActorID: "usr-7"}
	if orders.lastChange != want {
		t.Fatalf("change = %+v, want %+v", orders.lastChange, want)
	}
}

func TestStatusPatchErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"missing status", `{"note":"x"}`, nil, http.StatusBadRequest},
		{"malformed body", `{"status":`, nil, http.StatusBadRequest},
		{"unknown field", `{"status":"processing","priority":1}`, nil, http.StatusBadRequest},
		{"invalid transition", `{"status":"pending"}`, apperrors.NewInvalidTransitionError("delivered", "pending"), http.StatusBadRequest},
		{"not found", `{"status":"processing"}`, apperrors.NewNotFoundError("order ord-9 not found"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(Dependencies{Orders: &fakeOrders{statusErr: tt.err}})

			rec, resp := do(h, http.MethodPatch, "/api/v1/orders/ord-1/status", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if resp.Success || resp.Error == "" {
				t.Fatalf("expected error envelope, got %+v", resp)
			}
		})
	}
}

func TestServerErrorsAreNotLeaked(t *testing.T) {
	cause := errors.New("pq: connection refused")
	h := newTestServer(Dependencies{Orders: &fakeOrders{statusErr: apperrors.NewPersistenceError("update status", cause)}})

	rec, resp := do(h, http.MethodPatch, "/api/v1/orders/ord-1/status", `{"status":"processing"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(resp.Error, "pq") {
		t.Fatalf("error message leaks cause: %q", resp.Error)
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestServer(Dependencies{Orders: orders})

	rec, _ := do(h, http.MethodPost, "/api/v1/orders",
		`{"customer_id":"cus-1","payment_method":"cod","shipping_address":"1 Main St","items":[{"variant_id":"var-1","quantity":2}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(orders.lastInput.Items) != 1 || orders.lastInput.Items[0].Quantity != 2 {
		t.Fatalf("unexpected input %+v", orders.lastInput)
	}

	if rec, _ := do(h, http.MethodGet, "/api/v1/orders/ord-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if rec, _ := do(h, http.MethodGet, "/api/v1/orders/ord-404", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing get status = %d, want 404", rec.Code)
	}
}

func TestListOrdersReportsTotal(t *testing.T) {
	h := newTestServer(Dependencies{})

	rec, _ := do(h, http.MethodGet, "/api/v1/orders?limit=500&status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Data PaginationResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Total != 7 || body.Data.Limit != 100 || body.Data.Status != "pending" {
		t.Fatalf("unexpected page %+v", body.Data)
	}
}

func TestHistoryIsNeverNull(t *testing.T) {
	h := newTestServer(Dependencies{})

	rec, _ := do(h, http.MethodGet, "/api/v1/orders/ord-1/history", "")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("body = %s, want empty array", rec.Body.String())
	}
}

func TestDeadLetterAdmin(t *testing.T) {
	dlq := &fakeDeadLetters{}
	h := newTestServer(Dependencies{DeadLetters: dlq})

	if rec, _ := do(h, http.MethodPost, "/api/v1/admin/dead-letters/3/retry", ""); rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d", rec.Code)
	}
	if rec, _ := do(h, http.MethodPost, "/api/v1/admin/dead-letters/4/retry", ""); rec.Code != http.StatusConflict {
		t.Fatalf("retry of non-pending status = %d, want 409", rec.Code)
	}
	if rec, _ := do(h, http.MethodPost, "/api/v1/admin/dead-letters/abc/retry", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", rec.Code)
	}

	if rec, _ := do(h, http.MethodPost, "/api/v1/admin/dead-letters/3/discard", ""); rec.Code != http.StatusOK {
		t.Fatalf("discard status = %d", rec.Code)
	}
	if dlq.discarded != "No reason provided" {
		t.Fatalf("reason = %q", dlq.discarded)
	}
}

func TestCircuitBreakerAdmin(t *testing.T) {
	b := &fakeBreaker{}
	h := newTestServer(Dependencies{Breaker: b})

	if rec, _ := do(h, http.MethodGet, "/api/v1/admin/circuit-breaker", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec, _ := do(h, http.MethodPost, "/api/v1/admin/circuit-breaker/reset", ""); rec.Code != http.StatusOK || b.resets != 1 {
		t.Fatalf("reset status = %d, resets = %d", rec.Code, b.resets)
	}

	off := newTestServer(Dependencies{})
	if rec, _ := do(off, http.MethodGet, "/api/v1/admin/circuit-breaker", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled breaker status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	if rec, _ := do(newTestServer(Dependencies{Health: fakePinger{}}), http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}
	down := newTestServer(Dependencies{Health: fakePinger{err: errors.New("dial tcp: refused")}})
	if rec, _ := do(down, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d, want 503", rec.Code)
	}
}

func TestWritesAreRateLimitedPerActor(t *testing.T) {
	limiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{MaxTokens: 1, RefillRate: 0.001}, logger.NewNop())
	defer limiter.Stop()
	h := newTestServer(Dependencies{RateLimiter: limiter})

	body := `{"status":"processing"}`
	if rec, _ := do(h, http.MethodPatch, "/api/v1/orders/ord-1/status", body, middleware.ActorHeader, "usr-1"); rec.Code != http.StatusOK {
		t.Fatalf("first write status = %d", rec.Code)
	}
	if rec, _ := do(h, http.MethodPatch, "/api/v1/orders/ord-1/status", body, middleware.ActorHeader, "usr-1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status = %d, want 429", rec.Code)
	}
	if rec, _ := do(h, http.MethodPatch, "/api/v1/orders/ord-1/status", body, middleware.ActorHeader, "usr-2"); rec.Code != http.StatusOK {
		t.Fatalf("other actor status = %d", rec.Code)
	}
	if rec, _ := do(h, http.MethodGet, "/api/v1/orders/ord-1", "", middleware.ActorHeader, "usr-1"); rec.Code != http.StatusOK {
		t.Fatalf("read status = %d, reads are not limited", rec.Code)
	}
}
