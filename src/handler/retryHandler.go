package handler

import (
	"context"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"ordersaga/src/executors"
)

type sweeper interface {
	Sweep(ctx context.Context) (executors.SweepReport, error)
}

// SweepHandler runs one retry sweep in the request and reports what it did.
func SweepHandler(s sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Sweep(r.Context())
		if err != nil {
			logger.WithError(err).Error("manual retry sweep failed")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		code := http.StatusOK
		if report.LeaseHeld {
			code = http.StatusConflict
		}
		writeJSON(w, code, report)
	}
}
