package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"medicopilot/src/infrastructure/job"
	"medicopilot/src/log"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background ingestion worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	url := viper.GetString("amqp.url")
	if url == "" {
		return errors.New("amqp.url must be set to run the worker")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.NewWatermillLogger(log.Logger())

	c, err := buildComponents()
	if err != nil {
		return err
	}
	uploads, err := c.uploadService(ctx)
	if err != nil {
		return err
	}

	repo, closeDB, err := openJobRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	subscriber, err := job.NewAMQPSubscriber(url, logger)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	router, err := job.NewRouter(logger, viper.GetInt("amqp.max_retries"))
	if err != nil {
		return err
	}

	jobService := job.NewJobService(nil, repo, uploads, logger)
	jobService.Register(router, subscriber)

	log.Info("Worker started", "topic", job.Topic)
	if err := router.Run(ctx); err != nil {
		return err
	}
	log.Info("Router stopped")
	return nil
}
