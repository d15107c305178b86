package jobqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "job:"
	JobQueueKey      = "job_queue"
	JobProcessingKey = "job_processing"

	// Job settings
	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour // Jobs expire after 24 hours

	// Sweeper settings
	stuckJobMaxAge        = 10 * time.Minute
	stuckJobSweepInterval = time.Minute
)

// ProcessorFunc handles one job. Returning an error requeues the job until
// MaxRetries is exhausted.
type ProcessorFunc func(ctx context.Context, job *Job) error

// Queue manages background jobs using Redis lists. The webhook handler
// enqueues notification jobs here so that a slow or failing notification
// channel can never block or fail ledger reconciliation.
type Queue struct {
	client   *redis.Client
	workers  int
	handlers map[JobType]ProcessorFunc
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewQueue creates a new job queue.
func NewQueue(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	return &Queue{
		client:   client,
		workers:  workers,
		handlers: make(map[JobType]ProcessorFunc),
		stopCh:   make(chan struct{}),
	}
}

// Register binds a processor to a job type. Call before Start.
func (q *Queue) Register(jobType JobType, fn ProcessorFunc) {
	q.handlers[jobType] = fn
}

// Enqueue stores the job and pushes it onto the queue.
func (q *Queue) Enqueue(job *Job) error {
	ctx := context.Background()
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		return err
	}
	return q.client.LPush(ctx, JobQueueKey, job.ID).Err()
}

// EnqueueNotification queues an outbound confirmation message.
func (q *Queue) EnqueueNotification(to, kind string, data map[string]string) error {
	job, err := NewJob(JobTypeNotification, NotificationJobPayload{To: to, Kind: kind, Data: data})
	if err != nil {
		return err
	}
	return q.Enqueue(job)
}

// Start starts the queue workers.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	// Recovers jobs stranded in the processing list by a worker crash.
	q.wg.Add(1)
	go q.stuckSweeper(stuckJobMaxAge, stuckJobSweepInterval)
}

// Stop stops the queue workers and waits for them to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		// The pop parks the id on the processing list so a crash between
		// here and completion leaves a trace the sweeper can recover.
		jobID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, 1*time.Second).Result()
		if err != nil {
			if err != redis.Nil {
				log.Errorf("[JobQueue] Worker %d pop error: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		q.processJobID(ctx, id, jobID)
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
	}
}

func (q *Queue) processJobID(ctx context.Context, workerID int, jobID string) {
	data, err := q.client.Get(ctx, JobKeyPrefix+jobID).Result()
	if err != nil {
		if err != redis.Nil {
			log.Errorf("[JobQueue] Worker %d failed to load job %s: %v", workerID, jobID, err)
		}
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		log.Errorf("[JobQueue] Worker %d failed to unmarshal job %s: %v", workerID, jobID, err)
		return
	}

	handler, ok := q.handlers[job.Type]
	if !ok {
		log.Warnf("[JobQueue] No handler registered for job type %s (job %s)", job.Type, job.ID)
		return
	}

	job.Status = JobStatusProcessing
	q.saveJob(ctx, &job)

	if err := handler(ctx, &job); err != nil {
		job.RetryCount++
		job.LastError = err.Error()
		if job.RetryCount >= job.MaxRetries {
			job.Status = JobStatusFailed
			q.saveJob(ctx, &job)
			log.Errorf("[JobQueue] Job %s (%s) failed permanently after %d attempts: %v", job.ID, job.Type, job.RetryCount, err)
			return
		}
		job.Status = JobStatusPending
		q.saveJob(ctx, &job)
		if perr := q.client.LPush(ctx, JobQueueKey, job.ID).Err(); perr != nil {
			log.Errorf("[JobQueue] Failed to requeue job %s: %v", job.ID, perr)
		}
		log.Warnf("[JobQueue] Job %s (%s) failed (attempt %d/%d), requeued: %v", job.ID, job.Type, job.RetryCount, job.MaxRetries, err)
		return
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.ProcessedAt = &now
	q.saveJob(ctx, &job)
}

// stuckSweeper periodically requeues jobs that sat on the processing list
// for longer than maxAge.
func (q *Queue) stuckSweeper(maxAge, interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
			if err != nil {
				log.Errorf("[JobQueue] Sweeper LRange error: %v", err)
				continue
			}
			now := time.Now()
			for _, id := range ids {
				data, err := q.client.Get(ctx, JobKeyPrefix+id).Result()
				if err != nil {
					// Job data expired or missing; drop the stray entry.
					q.client.LRem(ctx, JobProcessingKey, 1, id)
					continue
				}
				var job Job
				if uerr := json.Unmarshal([]byte(data), &job); uerr != nil {
					log.Errorf("[JobQueue] Sweeper unmarshal error for %s: %v", id, uerr)
					q.client.LRem(ctx, JobProcessingKey, 1, id)
					continue
				}
				if !jobStuck(&job, now, maxAge) {
					if job.Status != JobStatusProcessing {
						q.client.LRem(ctx, JobProcessingKey, 1, id)
					}
					continue
				}
				log.Warnf("[JobQueue] Recovering stuck job %s (%s)", job.ID, job.Type)
				job.Status = JobStatusPending
				job.LastError = "recovered by sweeper"
				q.saveJob(ctx, &job)
				q.client.LRem(ctx, JobProcessingKey, 1, id)
				if perr := q.client.LPush(ctx, JobQueueKey, id).Err(); perr != nil {
					log.Errorf("[JobQueue] Failed to requeue stuck job %s: %v", id, perr)
				}
			}
		}
	}
}

// jobStuck reports whether a job has been in processing longer than maxAge.
func jobStuck(job *Job, now time.Time, maxAge time.Duration) bool {
	if job.Status != JobStatusProcessing {
		return false
	}
	started := job.UpdatedAt
	if started.IsZero() {
		started = job.CreatedAt
	}
	return now.Sub(started) > maxAge
}

func (q *Queue) saveJob(ctx context.Context, job *Job) {
	job.UpdatedAt = time.Now()
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to save job %s: %v", job.ID, err)
	}
}
