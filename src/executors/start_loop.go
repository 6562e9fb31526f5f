package executors

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

// StartRetryLoop sweeps on every tick until ctx is done. A failed sweep is logged and
// the loop carries on.
func StartRetryLoop(ctx context.Context, sweeper *Sweeper, period time.Duration) error {
	ticker := time.NewTicker(period) // Set up a ticker that fires periodically
	defer ticker.Stop()

	logger.WithField("period", period.String()).Info("retry loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Println("retry loop stopped")
			return nil

		case <-ticker.C:
			logger.Debug("retry loop tick")
			if _, err := sweeper.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.WithError(err).Error("retry sweep failed")
			}
		}
	}
}
