package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"ordersaga/cmd/executor"
	"ordersaga/src/database"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "ordersaga"
	app.Usage = "Order reconciliation workers"
	app.Version = Version

	app.Commands = []cli.Command{
		serverCMD,
		retryCMD,
		sweepCMD,
		migrateCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the HTTP server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the order API on PORT, with the retry loop unless SERVER_RETRY_LOOP=false`,
	}
	retryCMD = cli.Command{
		Name:        "retry",
		Usage:       "run the retry worker",
		Action:      retryAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Replay failed external calls every RETRY_LOOP_PERIOD until stopped`,
	}
	sweepCMD = cli.Command{
		Name:        "sweep",
		Usage:       "run one retry sweep",
		Action:      sweepAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Replay the currently claimable failed calls once and exit`,
	}
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "migrate the database",
		Action:      migrateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run schema and data migrations against DATABASE_URL_MAIN`,
	}
)

func serverAction(_ *cli.Context) error {

	logrus.Info("Starting server CMD")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := executor.Serve(ctx, logrus.WithField("cmd", "server")); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func retryAction(_ *cli.Context) error {

	logrus.Info("Starting retry CMD")

	worker := &executor.Executor{}
	err := worker.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func sweepAction(_ *cli.Context) error {

	logrus.Info("Starting sweep CMD")

	worker := &executor.Executor{Once: true}
	if err := worker.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

// migrateAction connects to the main database, which migrates it on the way.
func migrateAction(_ *cli.Context) error {

	logrus.Info("Starting migrate CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to migrate database")
		return err
	}
	logrus.Info("Database migrated")

	return nil
}
