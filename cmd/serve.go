package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "medicopilot/handler/http"
	"medicopilot/src/infrastructure/job"
	"medicopilot/src/log"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `The serve command starts an HTTP server for document upload, question
answering and health checks. Async uploads are enabled when amqp.url is set.`,
	RunE: RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := buildComponents()
	if err != nil {
		return err
	}

	uploads, err := c.uploadService(ctx)
	if err != nil {
		return err
	}

	var jobs httpHdlr.Jobs
	if url := viper.GetString("amqp.url"); url != "" {
		repo, closeDB, err := openJobRepository(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		publisher, err := job.NewAMQPPublisher(url, log.NewWatermillLogger(log.Logger()))
		if err != nil {
			return err
		}
		defer closePublisher(publisher)

		jobs = job.NewJobService(publisher, repo, nil, log.NewWatermillLogger(log.Logger()))
		log.Info("Async ingestion enabled")
	}

	handler := httpHdlr.NewHandler(uploads, c.documents, c.retrieval, c.store, c.generator, jobs, httpHdlr.Info{
		Name:    viper.GetString("app.name"),
		Version: viper.GetString("app.version"),
	})
	handler.SetDefaultMaxResults(viper.GetInt("rag.max_results"))

	// Setup gin router
	r := gin.Default()
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		log.Error(err, "Failed to start server")
		return err
	case <-quit:
	}
	log.Info("Shutting down server...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
		return err
	}

	log.Info("Server exited")
	return nil
}

func closePublisher(p *amqp.Publisher) {
	if err := p.Close(); err != nil {
		log.Error(err, "Error closing publisher")
	}
}
