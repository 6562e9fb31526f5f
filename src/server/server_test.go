package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/controller"
	"ordersaga/src/executors"
	"ordersaga/src/model"
	"ordersaga/src/repository"
)

type stubOrders struct{ calls []string }

func (s *stubOrders) record(name string) (*controller.ChangeResult, error) {
	s.calls = append(s.calls, name)
	return &controller.ChangeResult{State: controller.StateCommitted}, nil
}

func (s *stubOrders) CreateOrder(context.Context, controller.CreateRequest) (*controller.ChangeResult, error) {
	return s.record("create")
}

func (s *stubOrders) ChangeOrder(context.Context, controller.ChangeRequest) (*controller.ChangeResult, error) {
	return s.record("change")
}

func (s *stubOrders) CancelLines(context.Context, uint, []string) (*controller.ChangeResult, error) {
	return s.record("cancel")
}

func (s *stubOrders) UndoLines(context.Context, uint, []string) (*controller.ChangeResult, error) {
	return s.record("undo")
}

func (s *stubOrders) SplitLine(context.Context, controller.SplitRequest) (*controller.ChangeResult, error) {
	return s.record("split")
}

type stubReader struct{}

func (stubReader) FindByID(_ context.Context, id uint) (*model.Order, error) {
	if id == 1 {
		return &model.Order{ID: 1, OrderNo: "0410000001"}, nil
	}
	return nil, nil
}

func (stubReader) Search(context.Context, repository.OrderSearchOptions) ([]model.Order, error) {
	return []model.Order{{ID: 1}}, nil
}

type stubHistory struct{}

func (stubHistory) FindByOrder(context.Context, uint) ([]model.ExternalCallLog, error) {
	return []model.ExternalCallLog{{ID: 1}}, nil
}

type stubExceptions struct{}

func (stubExceptions) FindByOrder(context.Context, uint) ([]model.Exception, error) {
	return nil, nil
}

type stubSweeper struct{}

func (stubSweeper) Sweep(context.Context) (executors.SweepReport, error) {
	return executors.SweepReport{}, nil
}

func TestRouterWiresEveryRoute(t *testing.T) {
	orders := &stubOrders{}
	h := NewRouter(Routes{Orders: orders, Reader: stubReader{}, Calls: stubHistory{}, Exceptions: stubExceptions{}, Sweeper: stubSweeper{}})

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthcheck", "", http.StatusOK},
		{http.MethodGet, "/orders", "", http.StatusOK},
		{http.MethodGet, "/orders/1", "", http.StatusOK},
		{http.MethodGet, "/orders/2", "", http.StatusNotFound},
		{http.MethodGet, "/orders/1/calls", "", http.StatusOK},
		{http.MethodGet, "/orders/1/exceptions", "", http.StatusOK},
		{http.MethodPost, "/orders", `{"type":"DOMESTIC"}`, http.StatusOK},
		{http.MethodPost, "/orders/1/changes", `{"cancel":["10"]}`, http.StatusOK},
		{http.MethodPost, "/orders/1/cancel", `{"itemNos":["10"]}`, http.StatusOK},
		{http.MethodPost, "/orders/1/undo", `{"itemNos":["10"]}`, http.StatusOK},
		{http.MethodPost, "/orders/1/split", `{"itemNo":"10","parts":[]}`, http.StatusOK},
		{http.MethodPost, "/retry/sweep", "", http.StatusOK},
		{http.MethodDelete, "/orders/1", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
		assert.Equal(t, tt.want, rr.Code, "%s %s", tt.method, tt.path)
	}
	assert.Equal(t, []string{"create", "change", "cancel", "undo", "split"}, orders.calls)
}

func TestStartServerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, "0", http.NotFoundHandler()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
