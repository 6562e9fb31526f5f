package executor

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"ordersaga/src/connectors"
	"ordersaga/src/controller"
	"ordersaga/src/executors"
	"ordersaga/src/locks"
	"ordersaga/src/plugin"
	"ordersaga/src/repository"
	"ordersaga/src/server"
)

// Components are the long-lived services of one process. Build them after the
// databases are initialized.
type Components struct {
	Orchestrator *controller.Orchestrator
	Sweeper      *executors.Sweeper
	Reader       *repository.OrderRepository
	Calls        *repository.CallLogRepository
	Exceptions   *repository.ExceptionRepository
	Retry        executors.Config
	Locker       locks.Locker
}

func Build(ctx context.Context, log *logrus.Entry) (*Components, error) {
	locker, err := locks.New(ctx, locks.GetConfig())
	if err != nil {
		return nil, err
	}

	ccfg := connectors.GetConfig()
	planner := connectors.NewPlannerClient(ccfg)
	ledger := connectors.NewLedgerClient(ccfg)

	orders := repository.NewOrderRepository()
	calls := repository.NewCallLogRepository()
	exceptions := repository.NewExceptionRepository()

	orchestrator := controller.NewOrchestrator(controller.GetConfig(), controller.Deps{
		Orders:     orders,
		Exceptions: exceptions,
		Calls:      calls,
		Planner:    planner,
		Ledger:     ledger,
		Locker:     locker,
		Log:        log,
	})

	retry := executors.GetConfig()
	sweeper := executors.NewSweeper(retry, calls, orders,
		connectors.NewReplayer(planner, ledger),
		locker,
		plugin.NewLogPlugin(plugin.GetConfig(), log),
		log,
	)

	return &Components{
		Orchestrator: orchestrator,
		Sweeper:      sweeper,
		Reader:       repository.NewOrderReadRepository(),
		Calls:        calls,
		Exceptions:   exceptions,
		Retry:        retry,
		Locker:       locker,
	}, nil
}

func (c *Components) Routes() server.Routes {
	return server.Routes{
		Orders:     c.Orchestrator,
		Reader:     c.Reader,
		Calls:      c.Calls,
		Exceptions: c.Exceptions,
		Sweeper:    c.Sweeper,
	}
}

// Close releases the lock backend connection, if any.
func (c *Components) Close() {
	if closer, ok := c.Locker.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close lock backend")
		}
	}
}
