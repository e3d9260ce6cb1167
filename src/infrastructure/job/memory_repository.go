package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MemoryJobRepository keeps jobs in process memory. Used when no database is
// configured and in tests.
type MemoryJobRepository struct {
	mu        sync.RWMutex
	jobs      map[int64]Job
	snowflake *snowflake.Node
}

func NewMemoryJobRepository() (*MemoryJobRepository, error) {
	node, err := snowflake.NewNode(snowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &MemoryJobRepository{jobs: make(map[int64]Job), snowflake: node}, nil
}

func (r *MemoryJobRepository) Create(_ context.Context, taskType, filename string, payload json.RawMessage) (*Job, error) {
	now := time.Now()
	job := Job{
		ID:        r.snowflake.Generate().Int64(),
		TaskType:  taskType,
		Payload:   payload,
		Status:    JobStatusPending,
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return &job, nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id int64) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (r *MemoryJobRepository) UpdateStatus(_ context.Context, id int64, status JobStatus, errMsg *string) error {
	return r.update(id, func(j *Job) {
		j.Status = status
		j.Error = errMsg
	})
}

func (r *MemoryJobRepository) Complete(_ context.Context, id int64, documentID string, totalChunks int) error {
	return r.update(id, func(j *Job) {
		j.Status = JobStatusCompleted
		j.Error = nil
		j.DocumentID = documentID
		j.TotalChunks = totalChunks
	})
}

func (r *MemoryJobRepository) update(id int64, fn func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(&job)
	job.UpdatedAt = time.Now()
	r.jobs[id] = job
	return nil
}
