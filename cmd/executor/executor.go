package executor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"ordersaga/src/database"
	"ordersaga/src/executors"
)

// Executor runs the retry loop as a standalone worker.
type Executor struct {
	// Once makes Start run a single sweep and return.
	Once bool
}

func (t *Executor) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	log := logrus.WithField("cmd", "retry")
	c, err := Build(ctx, log)
	if err != nil {
		log.WithError(err).Error("Failed to build components")
		return err
	}
	defer c.Close()

	if t.Once {
		report, err := c.Sweeper.Sweep(ctx)
		if err != nil {
			log.WithError(err).Error("Retry sweep failed")
			return err
		}
		log.WithFields(map[string]interface{}{
			"claimed":   report.Claimed,
			"succeeded": report.Succeeded,
			"failed":    report.Failed,
			"exhausted": report.Exhausted,
			"lease":     report.LeaseHeld,
		}).Info("Retry sweep done")
		return nil
	}

	log.WithField("period", c.Retry.LoopPeriod.String()).Info("Starting retry worker")
	if err := executors.StartRetryLoop(ctx, c.Sweeper, c.Retry.LoopPeriod); err != nil {
		log.WithError(err).Error("Retry loop failed")
		return err
	}

	return nil
}
