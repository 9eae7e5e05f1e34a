package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/vaidashi/backoffice-api/internal/models"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if matches(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestObserveTransition(t *testing.T) {
	m := New()

	m.ObserveTransition(models.KindOrder, "new", "processing", nil, time.Millisecond)
	m.ObserveTransition(models.KindOrder, "delivered", "processing", apperrors.NewInvalidTransitionError("delivered", "processing"), time.Millisecond)
	m.ObserveTransition(models.KindOrder, "new", "cancelled", apperrors.NewSideEffectError("order.restock", errors.New("boom")), time.Millisecond)

	cases := map[string]map[string]string{
		"applied":            {"entity": "order", "to": "processing", "result": "applied"},
		"invalid_transition": {"entity": "order", "to": "processing", "result": "invalid_transition"},
		"side_effect_failed": {"entity": "order", "to": "cancelled", "result": "side_effect_failed"},
	}
	for name, labels := range cases {
		if got := counterValue(t, m, "status_transitions_total", labels); got != 1 {
			t.Errorf("%s: counter = %v, want 1", name, got)
		}
	}
}

func TestHandlerExposesRequests(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPatch, "/api/v1/orders/{id}/status", http.StatusOK, 10*time.Millisecond)
	m.SetOutboxBacklog(map[models.OutboxStatus]int{models.OutboxStatusPending: 3})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`http_requests_total{code="200",method="PATCH",route="/api/v1/orders/{id}/status"} 1`,
		`outbox_messages{status="pending"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
