package job

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// TaskTypeIngestion extracts and ingests a staged upload.
const TaskTypeIngestion = "ingest_document"

var ErrJobNotFound = errors.New("job not found")

// Job is a background ingestion request. DocumentID and TotalChunks are set
// once the job completes.
type Job struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	TaskType    string          `gorm:"index" json:"task_type"`
	Payload     json.RawMessage `gorm:"type:jsonb" json:"payload"`
	Status      JobStatus       `gorm:"index" json:"status"`
	Error       *string         `json:"error,omitempty"`
	Filename    string          `json:"filename"`
	DocumentID  string          `json:"document_id,omitempty"`
	TotalChunks int             `json:"total_chunks"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Job) TableName() string { return "ingestion_jobs" }

// IngestionPayload points at the staged bytes of one upload.
type IngestionPayload struct {
	StagingKey string `json:"staging_key"`
	Filename   string `json:"filename"`
}

// JobRepository defines the interface for job persistence. Get returns
// ErrJobNotFound for unknown ids.
type JobRepository interface {
	Create(ctx context.Context, taskType, filename string, payload json.RawMessage) (*Job, error)
	Get(ctx context.Context, id int64) (*Job, error)
	UpdateStatus(ctx context.Context, id int64, status JobStatus, errMsg *string) error
	Complete(ctx context.Context, id int64, documentID string, totalChunks int) error
}
