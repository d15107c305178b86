package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the processor responsible for a job.
type JobType string

const (
	// JobTypeNotification delivers an outbound confirmation message.
	JobTypeNotification JobType = "send_notification"
)

// JobStatus represents the lifecycle of a queued job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a unit of background work stored in Redis.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`
}

// NotificationJobPayload is the payload for JobTypeNotification jobs.
type NotificationJobPayload struct {
	To   string            `json:"to"`
	Kind string            `json:"kind"`
	Data map[string]string `json:"data"`
}

// NewJob creates a pending job with a marshaled payload.
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    raw,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}, nil
}
