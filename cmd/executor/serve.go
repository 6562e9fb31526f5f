package executor

import (
	"context"

	"github.com/sirupsen/logrus"

	"ordersaga/src/database"
	"ordersaga/src/executors"
	"ordersaga/src/server"
)

// Serve runs the HTTP server until ctx is done. Unless SERVER_RETRY_LOOP is off the
// retry loop runs alongside it.
func Serve(ctx context.Context, log *logrus.Entry) error {
	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		log.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	c, err := Build(ctx, log)
	if err != nil {
		log.WithError(err).Error("Failed to build components")
		return err
	}
	defer c.Close()

	if GetConfig().RetryLoop {
		go func() {
			if err := executors.StartRetryLoop(ctx, c.Sweeper, c.Retry.LoopPeriod); err != nil {
				log.WithError(err).Error("Retry loop stopped")
			}
		}()
	}

	return server.StartServer(ctx, server.GetConfig().Port, server.NewRouter(c.Routes()))
}
