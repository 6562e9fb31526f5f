package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"ordersaga/src/executors"
	"ordersaga/src/handler"
	"ordersaga/src/model"
	"ordersaga/src/repository"
)

// OrderReader serves the read-only endpoints.
type OrderReader interface {
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	Search(ctx context.Context, options repository.OrderSearchOptions) ([]model.Order, error)
}

// CallLogReader and ExceptionReader serve an order's history.
type CallLogReader interface {
	FindByOrder(ctx context.Context, orderID uint) ([]model.ExternalCallLog, error)
}

type ExceptionReader interface {
	FindByOrder(ctx context.Context, orderID uint) ([]model.Exception, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (executors.SweepReport, error)
}

type Routes struct {
	Orders     handler.OrderService
	Reader     OrderReader
	Calls      CallLogReader
	Exceptions ExceptionReader
	Sweeper    Sweeper
}

func NewRouter(rt Routes) http.Handler {
	// Router with middleware
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", handler.SearchOrdersHandler(rt.Reader))
		r.Post("/", handler.CreateOrderHandler(rt.Orders))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetOrderHandler(rt.Reader))
			r.Get("/calls", handler.OrderCallsHandler(rt.Calls))
			r.Get("/exceptions", handler.OrderExceptionsHandler(rt.Exceptions))
			r.Post("/changes", handler.ChangeOrderHandler(rt.Orders))
			r.Post("/cancel", handler.CancelLinesHandler(rt.Orders))
			r.Post("/undo", handler.UndoLinesHandler(rt.Orders))
			r.Post("/split", handler.SplitLineHandler(rt.Orders))
		})
	})

	r.Post("/retry/sweep", handler.SweepHandler(rt.Sweeper))
	return r
}

// StartServer serves h until ctx is done, then shuts down gracefully.
func StartServer(ctx context.Context, port string, h http.Handler) error {
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
