package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"ordersaga/src/model"
	"ordersaga/src/repository"
)

type orderSearcher interface {
	Search(ctx context.Context, options repository.OrderSearchOptions) ([]model.Order, error)
}

type orderFinder interface {
	FindByID(ctx context.Context, id uint) (*model.Order, error)
}

type callLogFinder interface {
	FindByOrder(ctx context.Context, orderID uint) ([]model.ExternalCallLog, error)
}

type exceptionFinder interface {
	FindByOrder(ctx context.Context, orderID uint) ([]model.Exception, error)
}

// SearchOrdersHandler lists order headers, newest first.
// Supports pagination and filters (status, orderNo).
func SearchOrdersHandler(repo orderSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 20
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 || parsedSize > 200 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		orders, err := repo.Search(r.Context(), repository.OrderSearchOptions{
			Status:  r.URL.Query().Get("status"),
			OrderNo: r.URL.Query().Get("orderNo"),
			Limit:   pageSize,
			Offset:  (page - 1) * pageSize,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// GetOrderHandler returns one order with its lines.
func GetOrderHandler(repo orderFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}

		order, err := repo.FindByID(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load order")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		// A draft without an order number was never accepted by the Ledger.
		if order == nil || order.OrderNo == "" {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "order not found"})
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// OrderCallsHandler lists the Planner and Ledger calls made for an order, oldest
// first. Rows still waiting for the retry sweep carry retry=true.
func OrderCallsHandler(repo callLogFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}

		rows, err := repo.FindByOrder(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load call log")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []model.ExternalCallLog{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// OrderExceptionsHandler lists the failures captured for an order, newest first.
func OrderExceptionsHandler(repo exceptionFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := orderID(w, r)
		if !ok {
			return
		}

		rows, err := repo.FindByOrder(r.Context(), id)
		if err != nil {
			logger.WithError(err).WithField("order_id", id).Error("failed to load exceptions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []model.Exception{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func orderID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}
