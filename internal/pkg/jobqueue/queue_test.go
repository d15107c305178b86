package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStuck(t *testing.T) {
	now := time.Now()
	maxAge := 10 * time.Minute

	job, err := NewJob(JobTypeNotification, NotificationJobPayload{To: "alice@example.com"})
	require.NoError(t, err)

	// Pending and completed jobs are never stuck, no matter how old.
	job.Status = JobStatusPending
	job.UpdatedAt = now.Add(-time.Hour)
	assert.False(t, jobStuck(job, now, maxAge))

	job.Status = JobStatusCompleted
	assert.False(t, jobStuck(job, now, maxAge))

	job.Status = JobStatusProcessing
	job.UpdatedAt = now.Add(-time.Minute)
	assert.False(t, jobStuck(job, now, maxAge))

	job.UpdatedAt = now.Add(-11 * time.Minute)
	assert.True(t, jobStuck(job, now, maxAge))

	// A job that was never saved after creation falls back to CreatedAt.
	job.UpdatedAt = time.Time{}
	job.CreatedAt = now.Add(-time.Hour)
	assert.True(t, jobStuck(job, now, maxAge))
}
