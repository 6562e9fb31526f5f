package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"ordersaga/src/controller"
	"ordersaga/src/failure"
	"ordersaga/src/locks"
)

// OrderService runs order features through the saga.
type OrderService interface {
	CreateOrder(ctx context.Context, req controller.CreateRequest) (*controller.ChangeResult, error)
	ChangeOrder(ctx context.Context, req controller.ChangeRequest) (*controller.ChangeResult, error)
	CancelLines(ctx context.Context, orderID uint, itemNos []string) (*controller.ChangeResult, error)
	UndoLines(ctx context.Context, orderID uint, itemNos []string) (*controller.ChangeResult, error)
	SplitLine(ctx context.Context, req controller.SplitRequest) (*controller.ChangeResult, error)
}

type errorBody struct {
	Error string       `json:"error"`
	Kind  failure.Kind `json:"kind,omitempty"`
	Item  string       `json:"itemNo,omitempty"`
}

type itemsPayload struct {
	ItemNos []string `json:"itemNos"`
}

func CreateOrderHandler(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req controller.CreateRequest
		if !decode(w, r, &req) {
			return
		}
		res, err := svc.CreateOrder(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		code := http.StatusOK
		if res.OrderNo != "" {
			code = http.StatusCreated
		}
		writeJSON(w, code, res)
	}
}

func ChangeOrderHandler(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}
		var req controller.ChangeRequest
		if !decode(w, r, &req) {
			return
		}
		req.OrderID = id
		respond(w)(svc.ChangeOrder(r.Context(), req))
	}
}

func CancelLinesHandler(svc OrderService) http.HandlerFunc {
	return itemsHandler(svc.CancelLines)
}

func UndoLinesHandler(svc OrderService) http.HandlerFunc {
	return itemsHandler(svc.UndoLines)
}

func itemsHandler(run func(context.Context, uint, []string) (*controller.ChangeResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}
		var p itemsPayload
		if !decode(w, r, &p) {
			return
		}
		respond(w)(run(r.Context(), id, p.ItemNos))
	}
}

func SplitLineHandler(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}
		var req controller.SplitRequest
		if !decode(w, r, &req) {
			return
		}
		req.OrderID = id
		respond(w)(svc.SplitLine(r.Context(), req))
	}
}

func respond(w http.ResponseWriter) func(*controller.ChangeResult, error) {
	return func(res *controller.ChangeResult, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		logger.WithError(err).Warn("invalid request payload")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload: " + err.Error()})
		return false
	}
	return true
}

// writeError maps saga errors onto HTTP statuses. Failures of individual lines are
// not errors; they come back in a 200 result.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Kind: failure.KindOf(err)}
	var fe *failure.Error
	if errors.As(err, &fe) {
		body.Item = fe.ItemNo
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, controller.ErrOrderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, locks.ErrNotAcquired):
		code = http.StatusConflict
	case body.Kind == failure.Validation:
		code = http.StatusUnprocessableEntity
	case body.Kind == failure.External, body.Kind == failure.Transport:
		code = http.StatusBadGateway
	}

	entry := logger.WithError(err).WithField("status", code)
	if code >= 500 {
		entry.Error("order request failed")
	} else {
		entry.Warn("order request rejected")
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
