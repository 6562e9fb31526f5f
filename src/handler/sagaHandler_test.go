package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/controller"
	"ordersaga/src/executors"
	"ordersaga/src/failure"
	"ordersaga/src/locks"
)

type fakeService struct {
	result   *controller.ChangeResult
	err      error
	create   controller.CreateRequest
	change   controller.ChangeRequest
	split    controller.SplitRequest
	orderID  uint
	itemNos  []string
	lastCall string
}

func (f *fakeService) CreateOrder(ctx context.Context, req controller.CreateRequest) (*controller.ChangeResult, error) {
	f.lastCall, f.create = "create", req
	return f.result, f.err
}

func (f *fakeService) ChangeOrder(ctx context.Context, req controller.ChangeRequest) (*controller.ChangeResult, error) {
	f.lastCall, f.change = "change", req
	return f.result, f.err
}

func (f *fakeService) CancelLines(ctx context.Context, orderID uint, itemNos []string) (*controller.ChangeResult, error) {
	f.lastCall, f.orderID, f.itemNos = "cancel", orderID, itemNos
	return f.result, f.err
}

func (f *fakeService) UndoLines(ctx context.Context, orderID uint, itemNos []string) (*controller.ChangeResult, error) {
	f.lastCall, f.orderID, f.itemNos = "undo", orderID, itemNos
	return f.result, f.err
}

func (f *fakeService) SplitLine(ctx context.Context, req controller.SplitRequest) (*controller.ChangeResult, error) {
	f.lastCall, f.split = "split", req
	return f.result, f.err
}

func sagaRouter(svc OrderService) http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", CreateOrderHandler(svc))
	r.Post("/orders/{id}/changes", ChangeOrderHandler(svc))
	r.Post("/orders/{id}/cancel", CancelLinesHandler(svc))
	r.Post("/orders/{id}/undo", UndoLinesHandler(svc))
	r.Post("/orders/{id}/split", SplitLineHandler(svc))
	return r
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func TestCreateOrderHandler(t *testing.T) {
	svc := &fakeService{result: &controller.ChangeResult{OrderID: 1, OrderNo: "0410000001", State: controller.StateCommitted}}

	rr := post(sagaRouter(svc), "/orders", `{"type":"DOMESTIC","soldToCode":"C","shipToCode":"S","lines":[{"materialCode":"M","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "DOMESTIC", svc.create.Type)
	require.Len(t, svc.create.Lines, 1)
	assert.Equal(t, 2.0, svc.create.Lines[0].Quantity)

	var res controller.ChangeResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, controller.StateCommitted, res.State)

	// A rolled back create is still a 200 with the failed lines in the body.
	svc.result = &controller.ChangeResult{OrderID: 2, State: controller.StateRolledBack}
	rr = post(sagaRouter(svc), "/orders", `{"type":"DOMESTIC"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateOrderHandlerRejectsUnknownFields(t *testing.T) {
	svc := &fakeService{}
	rr := post(sagaRouter(svc), "/orders", `{"type":"DOMESTIC","bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, svc.lastCall)
}

func TestMutationsCarryOrderID(t *testing.T) {
	svc := &fakeService{result: &controller.ChangeResult{}}
	h := sagaRouter(svc)

	assert.Equal(t, http.StatusOK, post(h, "/orders/4/cancel", `{"itemNos":["10","20"]}`).Code)
	assert.Equal(t, "cancel", svc.lastCall)
	assert.Equal(t, uint(4), svc.orderID)
	assert.Equal(t, []string{"10", "20"}, svc.itemNos)

	assert.Equal(t, http.StatusOK, post(h, "/orders/5/undo", `{"itemNos":["30"]}`).Code)
	assert.Equal(t, "undo", svc.lastCall)
	assert.Equal(t, uint(5), svc.orderID)

	assert.Equal(t, http.StatusOK, post(h, "/orders/6/changes", `{"updates":[{"itemNo":"10","quantity":3}],"cancel":["20"]}`).Code)
	assert.Equal(t, uint(6), svc.change.OrderID)
	require.Len(t, svc.change.Updates, 1)
	assert.Equal(t, 3.0, *svc.change.Updates[0].Quantity)
	assert.Nil(t, svc.change.Updates[0].Plant)

	assert.Equal(t, http.StatusOK, post(h, "/orders/7/split", `{"itemNo":"10","parts":[{"quantity":1},{"quantity":2}]}`).Code)
	assert.Equal(t, uint(7), svc.split.OrderID)
	assert.Len(t, svc.split.Parts, 2)

	assert.Equal(t, http.StatusBadRequest, post(h, "/orders/zero/cancel", `{}`).Code)
}

func TestWriteErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", failure.NewValidation("change_order", "10", "item is already cancelled"), http.StatusUnprocessableEntity},
		{"not found", &failure.Error{Kind: failure.Validation, Op: "change_order", Err: controller.ErrOrderNotFound}, http.StatusNotFound},
		{"busy", fmt.Errorf("lock order 1: %w", locks.ErrNotAcquired), http.StatusConflict},
		{"external", failure.NewExternal("ledger.create", "", "HTTP400", "bad"), http.StatusBadGateway},
		{"integrity", &failure.Error{Kind: failure.Integrity, Op: "persist"}, http.StatusInternalServerError},
		{"plain", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rr := post(sagaRouter(svc), "/orders/1/cancel", `{"itemNos":["10"]}`)
			assert.Equal(t, tt.want, rr.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

type fakeSweeper struct {
	report executors.SweepReport
	err    error
}

func (f fakeSweeper) Sweep(ctx context.Context) (executors.SweepReport, error) {
	return f.report, f.err
}

func TestSweepHandler(t *testing.T) {
	rr := post(SweepHandler(fakeSweeper{report: executors.SweepReport{Claimed: 2, Succeeded: 2}}), "/retry/sweep", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"succeeded":2`)

	rr = post(SweepHandler(fakeSweeper{report: executors.SweepReport{LeaseHeld: true}}), "/retry/sweep", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = post(SweepHandler(fakeSweeper{err: assert.AnError}), "/retry/sweep", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
