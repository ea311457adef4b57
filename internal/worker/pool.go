package worker

import (
	"context"
	"encoding/json"
	"time"

	"tillpos/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueCloseout = "jobs:closeout"
	QueueEmail    = "jobs:email"
)

// maxJobAttempts before a job is parked in the dead letter queue.
const maxJobAttempts = 3

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one dequeued payload. A returned error requeues the job
// until maxJobAttempts, then it goes to the DLQ.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// Handlers maps a queue name to the handler that consumes it.
type Handlers map[string]Handler

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueCloseout pushes a close-out report job (PDF rendering plus supervisor
// notification) to Redis.
func (d *Dispatcher) EnqueueCloseout(ctx context.Context, report *dto.CloseReportResponse) error {
	return d.enqueue(ctx, QueueCloseout, "closeout", report)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload interface{}) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming every queue that
// has a handler. Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers Handlers) {
	queues := make([]string, 0, len(handlers))
	for q := range handlers {
		queues = append(queues, q)
	}
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, queues, handlers)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, queues []string, handlers Handlers) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers Handlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	h, ok := handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler for queue")
		return
	}

	if err := h.Process(ctx, job.Payload); err != nil {
		job.Attempts++
		if job.Attempts >= maxJobAttempts {
			SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
			return
		}
		encoded, mErr := json.Marshal(job)
		if mErr != nil {
			log.Error().Err(mErr).Str("queue", queue).Msg("failed to re-encode job for retry")
			return
		}
		if pErr := rdb.LPush(ctx, queue, encoded).Err(); pErr != nil {
			log.Error().Err(pErr).Str("queue", queue).Msg("failed to requeue job")
			return
		}
		log.Warn().
			Str("queue", queue).
			Str("type", job.Type).
			Int("attempt", job.Attempts).
			Err(err).
			Msg("job failed, requeued")
		return
	}
	log.Info().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}
