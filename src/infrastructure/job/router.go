package job

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// NewAMQPPublisher publishes to durable queues at url.
func NewAMQPPublisher(url string, logger watermill.LoggerAdapter) (*amqp.Publisher, error) {
	return amqp.NewPublisher(amqp.NewDurableQueueConfig(url), logger)
}

// NewAMQPSubscriber consumes durable queues at url. Nacked messages are not
// requeued; retries happen in the router.
func NewAMQPSubscriber(url string, logger watermill.LoggerAdapter) (*amqp.Subscriber, error) {
	cfg := amqp.NewDurableQueueConfig(url)
	cfg.Consume.NoRequeueOnNack = true
	return amqp.NewSubscriber(cfg, logger)
}

// NewRouter builds a router with recovery, correlation ids and retries.
func NewRouter(logger watermill.LoggerAdapter, maxRetries int) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      maxRetries,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)
	return router, nil
}

// Register attaches the job handler to router.
func (s *JobService) Register(router *message.Router, subscriber message.Subscriber) {
	router.AddNoPublisherHandler(
		"job_processor",
		Topic,
		subscriber,
		s.ProcessJobMessage,
	)
}
