package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"medicopilot/src/core/rag"
)

// Topic carries job messages between the API and the worker.
const Topic = "jobs"

// Processor extracts and ingests a staged upload. Implemented by upload.Service.
type Processor interface {
	Process(ctx context.Context, key, filename string) (*rag.IngestResult, error)
}

type JobService struct {
	publisher message.Publisher
	repo      JobRepository
	processor Processor
	logger    watermill.LoggerAdapter
}

type JobMessage struct {
	JobID    int64           `json:"job_id,string"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

// NewJobService wires a job service. The publisher may be nil on the worker
// side and the processor may be nil on the API side.
func NewJobService(
	publisher message.Publisher,
	repo JobRepository,
	processor Processor,
	logger watermill.LoggerAdapter,
) *JobService {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &JobService{
		publisher: publisher,
		repo:      repo,
		processor: processor,
		logger:    logger,
	}
}

// EnqueueIngestion records a pending job for a staged upload and publishes it.
func (s *JobService) EnqueueIngestion(ctx context.Context, stagingKey, filename string) (*Job, error) {
	payload, err := json.Marshal(IngestionPayload{StagingKey: stagingKey, Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingestion payload: %w", err)
	}
	return s.EnqueueJob(ctx, TaskTypeIngestion, filename, payload)
}

// EnqueueJob creates a new job and publishes it to the message queue
func (s *JobService) EnqueueJob(ctx context.Context, taskType, filename string, payload json.RawMessage) (*Job, error) {
	job, err := s.repo.Create(ctx, taskType, filename, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	msgPayload, err := json.Marshal(JobMessage{
		JobID:    job.ID,
		TaskType: job.TaskType,
		Payload:  job.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(Topic, msg); err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(context.WithoutCancel(ctx), job.ID, JobStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to mark unpublished job as failed", updateErr, watermill.LogFields{"job_id": job.ID})
		}
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	s.logger.Info("Job enqueued", watermill.LogFields{
		"job_id":    job.ID,
		"task_type": job.TaskType,
		"filename":  filename,
	})
	return job, nil
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, id int64) (*Job, error) {
	return s.repo.Get(ctx, id)
}

// ProcessJobMessage processes a job message from the queue. Returning an
// error makes the router retry the message, so it is reserved for failures
// to read or update the job record. A failed task is recorded on the job and
// the message is acknowledged, since the staged upload is gone by then.
func (s *JobService) ProcessJobMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		s.logger.Error("Dropping malformed job message", err, watermill.LogFields{"message_uuid": msg.UUID})
		return nil
	}

	ctx := msg.Context()

	job, err := s.repo.Get(ctx, jobMsg.JobID)
	if errors.Is(err, ErrJobNotFound) {
		s.logger.Error("Dropping message for unknown job", err, watermill.LogFields{"job_id": jobMsg.JobID})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job.Status.Done() {
		s.logger.Debug("Job already finished, skipping redelivery", watermill.LogFields{"job_id": job.ID})
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusRunning, nil); err != nil {
		return fmt.Errorf("failed to update job status to running: %w", err)
	}

	result, err := s.processJob(ctx, job)
	if err != nil {
		errStr := err.Error()
		s.logger.Error("Job failed", err, watermill.LogFields{
			"job_id":    job.ID,
			"filename":  job.Filename,
			"retryable": rag.Classify(err) == rag.OutcomeRetryable,
		})
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, &errStr); updateErr != nil {
			return fmt.Errorf("failed to update job status to failed: %w", updateErr)
		}
		return nil
	}

	if err := s.repo.Complete(ctx, job.ID, result.DocumentID, result.TotalChunks); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	s.logger.Info("Job completed", watermill.LogFields{
		"job_id":       job.ID,
		"document_id":  result.DocumentID,
		"total_chunks": result.TotalChunks,
	})
	return nil
}

// processJob handles different types of jobs
func (s *JobService) processJob(ctx context.Context, job *Job) (*rag.IngestResult, error) {
	switch job.TaskType {
	case TaskTypeIngestion:
		var payload IngestionPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ingestion payload: %w", err)
		}
		if s.processor == nil {
			return nil, errors.New("no processor configured")
		}
		return s.processor.Process(ctx, payload.StagingKey, payload.Filename)
	default:
		return nil, fmt.Errorf("unknown task type: %s", job.TaskType)
	}
}
