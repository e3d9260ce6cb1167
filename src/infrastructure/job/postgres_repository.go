package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// snowflakeNode identifies this service in generated job ids.
const snowflakeNode = 1

type PostgresJobRepository struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

// OpenPostgres connects to the database described by dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func NewPostgresJobRepository(db *gorm.DB) (*PostgresJobRepository, error) {
	node, err := snowflake.NewNode(snowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &PostgresJobRepository{db: db, snowflake: node}, nil
}

// Migrate creates or updates the jobs table.
func (r *PostgresJobRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Job{})
}

func (r *PostgresJobRepository) Create(ctx context.Context, taskType, filename string, payload json.RawMessage) (*Job, error) {
	job := &Job{
		ID:       r.snowflake.Generate().Int64(),
		TaskType: taskType,
		Payload:  payload,
		Status:   JobStatusPending,
		Filename: filename,
	}

	result := r.db.WithContext(ctx).Create(job)
	if result.Error != nil {
		return nil, result.Error
	}

	return job, nil
}

func (r *PostgresJobRepository) Get(ctx context.Context, id int64) (*Job, error) {
	var job Job
	result := r.db.WithContext(ctx).First(&job, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, result.Error
	}

	return &job, nil
}

func (r *PostgresJobRepository) UpdateStatus(ctx context.Context, id int64, status JobStatus, errMsg *string) error {
	return r.update(ctx, id, map[string]interface{}{
		"status": status,
		"error":  errMsg,
	})
}

func (r *PostgresJobRepository) Complete(ctx context.Context, id int64, documentID string, totalChunks int) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":       JobStatusCompleted,
		"error":        nil,
		"document_id":  documentID,
		"total_chunks": totalChunks,
	})
}

func (r *PostgresJobRepository) update(ctx context.Context, id int64, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}
