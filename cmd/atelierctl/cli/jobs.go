package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/atelier-admin/atelier/jobs"
)

// Queue submits console jobs.
type Queue interface {
	EnqueueWarmup(ctx context.Context, session string, resources ...string) (*asynq.TaskInfo, error)
	EnqueueInvalidate(ctx context.Context, resource string) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector reads queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for the console jobs.
type JobsCLI struct {
	queue     Queue
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{queue: client, inspector: asynq.NewInspector(opts)}, nil
}

// NewJobsCLIWith builds the helpers around existing queue handles.
func NewJobsCLIWith(queue Queue, inspector Inspector) *JobsCLI {
	return &JobsCLI{queue: queue, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.queue != nil {
		errs = append(errs, c.queue.Close())
	}
	return errors.Join(errs...)
}

// Warmup enqueues a warmup of resources for session; none means all of them.
func (c *JobsCLI) Warmup(ctx context.Context, session string, resources ...string) (*asynq.TaskInfo, error) {
	if c == nil || c.queue == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	info, err := c.queue.EnqueueWarmup(ctx, session, resources...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, errors.New("jobs cli: a warmup of the same resources is already queued")
	}
	return info, err
}

// Invalidate enqueues an invalidation of resource on every console.
func (c *JobsCLI) Invalidate(ctx context.Context, resource string) (*asynq.TaskInfo, error) {
	if c == nil || c.queue == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.queue.EnqueueInvalidate(ctx, resource)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}
